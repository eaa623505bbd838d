package domain

import (
	"encoding/json"
	"fmt"
)

// PlatformFacebook is the only delivery platform currently supported.
const PlatformFacebook = "facebook"

// QueueMessage is the envelope placed on the queue by the producer.
// The notification text is not carried in the message; the consumer resolves
// it at dispatch time, keeping the queue payload minimal.
type QueueMessage struct {
	FBID string `json:"fb_id"`
}

// Encode serializes the message for the wire.
func (m QueueMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeQueueMessage parses a queue body. A body that is not JSON or that
// lacks a non-empty fb_id is not retryable and yields ErrMalformedMessage.
func DecodeQueueMessage(body []byte) (QueueMessage, error) {
	var m QueueMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return QueueMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.FBID == "" {
		return QueueMessage{}, ErrMalformedMessage
	}
	return m, nil
}

// DeliveryRequest describes one outbound Messenger send.
type DeliveryRequest struct {
	RecipientID string `json:"fb_id"`
	MessageText string `json:"message_text"`
	Platform    string `json:"platform"`
}

// Validate checks the fields the provider call requires. The access token is
// validated separately by the sender, after config resolution.
func (r DeliveryRequest) Validate() error {
	if r.Platform != "" && r.Platform != PlatformFacebook {
		return ErrUnsupportedPlatform
	}
	if r.RecipientID == "" || r.MessageText == "" {
		return ErrMissingParams
	}
	return nil
}

// DeliveryResult is the tagged outcome of a single send attempt. Exactly one
// of the failure indicators is set on failure; Provider holds the raw provider
// response on success (opaque, not schema-validated beyond JSON parse).
type DeliveryResult struct {
	Sent     bool            `json:"sent"`
	Provider json.RawMessage `json:"provider_response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// EnqueueReport aggregates one producer pass.
type EnqueueReport struct {
	Enqueued int `json:"enqueued"`
	Skipped  int `json:"skipped"`
}

// PullResult is the outcome of one pull-mode fetch. Msg carries the
// empty-queue sentinel; Delivery is set when a message was processed.
type PullResult struct {
	Msg      string          `json:"msg,omitempty"`
	Delivery *DeliveryResult `json:"delivery,omitempty"`
	Deleted  int             `json:"deleted"`
}

// DrainReport counts messages removed by a maintenance drain.
type DrainReport struct {
	Deleted int `json:"deleted_msg_count"`
}
