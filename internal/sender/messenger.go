package sender

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/configstore"
	"github.com/remindly/expiry-notifier/internal/domain"
)

// messagePayload is the JSON body posted to the Messenger Send API.
type messagePayload struct {
	MessagingType string    `json:"messaging_type"`
	Recipient     recipient `json:"recipient"`
	Message       text      `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type text struct {
	Text string `json:"text"`
}

// Messenger delivers one notification per call through the Facebook Graph
// Send API. The page access token is resolved from the config store on every
// send, so a token rotation in the store takes effect without a restart.
type Messenger struct {
	client   *resty.Client
	store    configstore.Store
	credsKey string
	logger   *zap.Logger
}

func NewMessenger(
	baseURL string,
	timeout time.Duration,
	store configstore.Store,
	credsKey string,
	logger *zap.Logger,
) *Messenger {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Messenger{
		client:   client,
		store:    store,
		credsKey: credsKey,
		logger:   logger,
	}
}

// Send performs one synchronous delivery attempt and never returns an error:
// every failure mode — missing parameters, unresolved token, transport
// failure, unparseable response — is folded into the DeliveryResult so batch
// processing can continue. Callers inspect Sent and Error.
func (m *Messenger) Send(ctx context.Context, req domain.DeliveryRequest) domain.DeliveryResult {
	token, err := m.resolveToken(ctx)
	if err != nil {
		return domain.DeliveryResult{Error: err.Error()}
	}

	if token == "" {
		return domain.DeliveryResult{Error: domain.ErrMissingParams.Error()}
	}
	if err := req.Validate(); err != nil {
		return domain.DeliveryResult{Error: err.Error()}
	}

	payload := messagePayload{
		MessagingType: "RESPONSE",
		Recipient:     recipient{ID: req.RecipientID},
		Message:       text{Text: req.MessageText},
	}

	start := time.Now()
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetBody(payload).
		Post("/me/messages")
	if err != nil {
		m.logger.Warn("provider call failed",
			zap.String("fb_id", req.RecipientID), zap.Error(err))
		return domain.DeliveryResult{Error: err.Error()}
	}

	m.logger.Debug("provider call completed",
		zap.String("fb_id", req.RecipientID),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", time.Since(start)))

	body := resp.Body()
	if !json.Valid(body) {
		return domain.DeliveryResult{Error: "provider returned non-JSON response"}
	}

	result := domain.DeliveryResult{Provider: json.RawMessage(body)}

	// The Graph API reports failures as a 200-or-4xx JSON body with an
	// "error" object; surface that as a soft failure too.
	var probe struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if jsonErr := json.Unmarshal(body, &probe); jsonErr == nil && probe.Error != nil {
		result.Error = probe.Error.Message
		return result
	}
	if resp.IsError() {
		result.Error = resp.Status()
		return result
	}

	result.Sent = true
	return result
}

func (m *Messenger) resolveToken(ctx context.Context) (string, error) {
	creds, err := m.store.Get(ctx, m.credsKey)
	if err != nil {
		return "", err
	}
	return creds.PageAccessToken, nil
}
