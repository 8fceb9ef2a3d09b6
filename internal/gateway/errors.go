package gateway

import "errors"

var (
	// ErrGatewayUnavailable covers network failures, timeouts and gateway
	// 5xx responses. The pull path reports "processing" on it; a slow
	// gateway is never mistaken for a failed payment.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrInvalidSignature rejects a webhook whose signature does not match.
	// No state change follows; the rejection is logged at high severity.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	ErrClientInitFailed = errors.New("failed to initialize gateway client")
)
