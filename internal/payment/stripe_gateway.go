package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"barboeuf-be/internal/logger"
	"barboeuf-be/internal/metrics"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

const (
	stripeAPIURL     = "https://api.stripe.com"
	webhookTolerance = 5 * time.Minute
)

type stripeGateway struct {
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	api           *client.API
	breaker       *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
}

// ----------------- Constructor -----------------

func NewStripeGateway(secretKey, webhookSecret string) Gateway {
	return newStripeGateway(secretKey, webhookSecret, stripeAPIURL, 2)
}

func newStripeGateway(secretKey, webhookSecret, apiURL string, retries int64) *stripeGateway {
	if secretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(apiURL),
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(retries),
		LeveledLogger:     logger.L().Named("stripe").Sugar(),
	})

	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &stripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		httpClient:    httpClient,
		api:           api,
		breaker:       newSessionBreaker(),
	}
}

func newSessionBreaker() *gobreaker.CircuitBreaker[*stripe.CheckoutSession] {
	return gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
		Name:        "stripe-checkout",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// isClientError reports whether Stripe rejected the request itself. Those are
// not provider outages and must not open the breaker.
func isClientError(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}

// ----------------- CreateCheckoutSession -----------------

func (s *stripeGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", req.OrderID),
		zap.String("locale", req.Locale),
		zap.Int("line_items", len(req.LineItems)),
	)

	if s.secretKey == "" {
		return nil, ErrProviderNotConfigured
	}

	params := buildSessionParams(req)
	params.Context = ctx

	timer := metrics.StartTimer()
	cs, err := s.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return s.api.CheckoutSessions.New(params)
	})
	timer.ObserveProvider("create_checkout_session", err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn("Stripe circuit open, rejecting checkout", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		log.Error("Stripe checkout session request failed", zap.Error(err))
		return nil, providerError(err)
	}

	log.Info("Stripe checkout session created", zap.String("session_id", cs.ID))

	return &Session{ID: cs.ID, URL: cs.URL}, nil
}

func buildSessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	currency := strings.ToLower(req.Currency)

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Locale:     stripe.String(req.Locale),
	}

	for _, it := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(it.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(it.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
					Metadata: map[string]string{
						"slug":       it.Slug,
						"product_id": it.ProductID,
					},
				},
			},
		})
	}

	params.AddMetadata("order_id", req.OrderID)
	return params
}

// providerError keeps Stripe's human readable message when there is one.
func providerError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return errors.New(se.Msg)
	}
	return err
}

// ----------------- ParseWebhook -----------------

func (s *stripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if s.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	evt := &WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Payload: json.RawMessage(payload),
	}

	if strings.HasPrefix(evt.Type, "checkout.session.") && event.Data != nil {
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", ErrMalformedEvent, err)
		}
		evt.SessionID = cs.ID
		evt.OrderID = cs.Metadata["order_id"]
		evt.PaymentStatus = string(cs.PaymentStatus)
	}

	return evt, nil
}
