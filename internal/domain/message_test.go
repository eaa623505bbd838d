package domain_test

import (
	"errors"
	"testing"

	"github.com/remindly/expiry-notifier/internal/domain"
)

func TestQueueMessage_RoundTrip(t *testing.T) {
	body, err := domain.QueueMessage{FBID: "123"}.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := domain.DecodeQueueMessage(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.FBID != "123" {
		t.Fatalf("expected fb_id=123, got %q", decoded.FBID)
	}
}

func TestDecodeQueueMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not-json"},
		{"missing fb_id", `{"other":"field"}`},
		{"empty fb_id", `{"fb_id":""}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.DecodeQueueMessage([]byte(tc.body))
			if !errors.Is(err, domain.ErrMalformedMessage) {
				t.Fatalf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestDeliveryRequest_Validate(t *testing.T) {
	valid := domain.DeliveryRequest{
		RecipientID: "42",
		MessageText: "Your payment is expired!",
		Platform:    domain.PlatformFacebook,
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty platform defaults to facebook", func(t *testing.T) {
		r := valid
		r.Platform = ""
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		r := valid
		r.Platform = "telegram"
		if err := r.Validate(); err != domain.ErrUnsupportedPlatform {
			t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
		}
	})

	t.Run("empty recipient", func(t *testing.T) {
		r := valid
		r.RecipientID = ""
		if err := r.Validate(); err != domain.ErrMissingParams {
			t.Fatalf("expected ErrMissingParams, got %v", err)
		}
	})

	t.Run("empty message text", func(t *testing.T) {
		r := valid
		r.MessageText = ""
		if err := r.Validate(); err != domain.ErrMissingParams {
			t.Fatalf("expected ErrMissingParams, got %v", err)
		}
	})
}

func TestQueryError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &domain.QueryError{Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected QueryError to unwrap to its cause")
	}
}
