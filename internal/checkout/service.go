package checkout

import (
	"context"
	"errors"
	"fmt"

	"barboeuf-be/internal/config"
	"barboeuf-be/internal/logger"
	"barboeuf-be/internal/metrics"
	"barboeuf-be/internal/order"
	"barboeuf-be/internal/payment"
	"barboeuf-be/internal/product"
	"barboeuf-be/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type Service interface {
	CreateSession(ctx context.Context, req Request) (*Result, error)
}

type service struct {
	cfg       *config.Config
	products  product.Repository
	orders    order.Repository
	gateway   payment.Gateway
	resolvers []Resolver
}

func NewService(
	cfg *config.Config,
	products product.Repository,
	orders order.Repository,
	gateway payment.Gateway,
) Service {
	return &service{
		cfg:       cfg,
		products:  products,
		orders:    orders,
		gateway:   gateway,
		resolvers: Resolvers(cfg.SiteURL, cfg.FallbackOrigin),
	}
}

// CreateSession turns a cart into a pending order and a hosted payment
// session. No provider call is made unless the order and all of its items
// were stored.
func (s *service) CreateSession(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := telemetry.Tracer("checkout").Start(ctx, "checkout.CreateSession")
	defer span.End()

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateSession"),
	)

	defer func() {
		metrics.CheckoutSessions.WithLabelValues(outcomeOf(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if cfgErr := s.cfg.CheckoutReady(); cfgErr != nil {
		log.Error("checkout called without required configuration", zap.Error(cfgErr))
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, cfgErr)
	}

	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}

	locale := NormalizeLocale(req.Locale)
	dest, _ := ResolveDestinations(req, s.resolvers)

	slugs, qtyBySlug := mergeLines(req.Items)
	span.SetAttributes(attribute.Int("checkout.requested_slugs", len(slugs)))

	catalog, err := s.products.GetBySlugs(ctx, slugs)
	if err != nil {
		log.Error("catalog lookup failed", zap.Error(err))
		return nil, err
	}

	bySlug := make(map[string]product.Product, len(catalog))
	for _, p := range catalog {
		bySlug[p.Slug] = p
	}

	var (
		lineItems  []payment.LineItem
		orderItems []order.OrderItem
		total      int64
	)
	for _, slug := range slugs {
		p, ok := bySlug[slug]
		if !ok {
			log.Info("dropping unknown or inactive product", zap.String("slug", slug))
			continue
		}

		qty := qtyBySlug[slug]
		unit := p.UnitAmountCents()

		lineItems = append(lineItems, payment.LineItem{
			ProductID:       p.ID,
			Slug:            p.Slug,
			Name:            p.DisplayName(string(locale)),
			UnitAmountCents: unit,
			Quantity:        qty,
		})
		orderItems = append(orderItems, order.OrderItem{
			ProductID:      p.ID,
			Slug:           p.Slug,
			Name:           p.NameFR,
			Quantity:       qty,
			UnitPriceCents: unit,
		})
		total += unit * int64(qty)
	}

	if len(lineItems) == 0 {
		return nil, ErrNoPurchasableItems
	}

	o := &order.Order{
		Currency:    s.cfg.Currency,
		AmountCents: total,
	}
	if err := s.orders.CreatePending(ctx, o, orderItems); err != nil {
		log.Error("failed to persist pending order", zap.Error(err))
		return nil, err
	}

	log = log.With(zap.String("order_id", o.ID.String()))
	span.SetAttributes(attribute.String("order.id", o.ID.String()))

	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.SessionRequest{
		OrderID:    o.ID.String(),
		Currency:   s.cfg.Currency,
		Locale:     string(locale),
		SuccessURL: dest.SuccessURL,
		CancelURL:  dest.CancelURL,
		LineItems:  lineItems,
	})
	if err != nil {
		log.Error("payment session creation failed, order left pending", zap.Error(err))
		return nil, err
	}

	if err := s.orders.AttachSession(ctx, o.ID, sess.ID); err != nil {
		log.Warn("failed to record session on order", zap.String("session_id", sess.ID), zap.Error(err))
	}

	log.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.Int64("amount_cents", total),
		zap.Int("line_items", len(lineItems)),
	)

	return &Result{URL: sess.URL, OrderID: o.ID, SessionID: sess.ID}, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrNoItems):
		return "no_items"
	case errors.Is(err, ErrNoPurchasableItems):
		return "no_purchasable_items"
	default:
		return "error"
	}
}
