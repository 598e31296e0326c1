package payment

import "errors"

var (
	ErrInvalidSignature      = errors.New("webhook signature verification failed")
	ErrMalformedEvent        = errors.New("webhook event payload malformed")
	ErrWebhookNotConfigured  = errors.New("webhook secret not configured")
	ErrProviderNotConfigured = errors.New("payment provider secret key not configured")
	ErrProviderUnavailable   = errors.New("payment provider unavailable")
)
