package payment

import "encoding/json"

const ProviderStripe = "stripe"

// Provider notification types the reconciler acts on.
const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired               = "checkout.session.expired"
)

const PaymentStatusUnpaid = "unpaid"

type LineItem struct {
	ProductID       string
	Slug            string
	Name            string
	UnitAmountCents int64
	Quantity        int
}

type SessionRequest struct {
	OrderID    string
	Currency   string
	Locale     string
	SuccessURL string
	CancelURL  string
	LineItems  []LineItem
}

type Session struct {
	ID  string
	URL string
}

// WebhookEvent is a verified provider notification reduced to what the
// reconciler needs.
type WebhookEvent struct {
	ID            string
	Type          string
	SessionID     string
	OrderID       string
	PaymentStatus string
	Payload       json.RawMessage
}
