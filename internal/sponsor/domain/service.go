package domain

import (
	"context"
	"errors"
)

type Service interface {
	// HandleWebhook verifies and processes a GitHub Sponsors webhook delivery.
	// The signature is the X-Hub-Signature-256 header value.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	// Reconcile aligns local sponsor rows and credit grants with GitHub state.
	Reconcile(ctx context.Context) error
}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrEventIgnored     = errors.New("event_ignored")
)
