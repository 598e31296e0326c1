package order

import (
	"context"
	"errors"
	"time"

	"barboeuf-be/internal/events"
	"barboeuf-be/internal/logger"
	"barboeuf-be/internal/metrics"
	"barboeuf-be/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type Service interface {
	Settle(ctx context.Context, orderID uuid.UUID) (*SettlementResult, error)
	Fail(ctx context.Context, orderID uuid.UUID) (bool, error)
	ResolveBySession(ctx context.Context, sessionID string) (uuid.UUID, error)
}

type service struct {
	repo      Repository
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo Repository, publisher events.Publisher) Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &service{repo: repo, publisher: publisher, now: time.Now}
}

// Settle runs the atomic paid transition. Only the call that actually moved the
// order out of pending publishes order.paid.
func (s *service) Settle(ctx context.Context, orderID uuid.UUID) (*SettlementResult, error) {
	ctx, span := telemetry.Tracer("order").Start(ctx, "order.Settle")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Settle"),
		zap.String("order_id", orderID.String()),
	)

	result, err := s.repo.CompleteAndAdjustStock(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			metrics.Settlements.WithLabelValues("not_found").Inc()
			log.Warn("settlement target not found")
			return nil, err
		}
		metrics.Settlements.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		log.Error("settlement failed", zap.Error(err))
		return nil, err
	}

	if result.AlreadySettled {
		span.SetAttributes(
			attribute.Bool("order.already_settled", true),
			attribute.String("order.status", string(result.Status)),
		)
		if result.Status != StatusPaid {
			metrics.Settlements.WithLabelValues("not_pending").Inc()
			log.Warn("payment received for an order that is no longer pending, stock untouched",
				zap.String("status", string(result.Status)),
				zap.Int64("amount_cents", result.AmountCents),
			)
			return result, nil
		}
		metrics.Settlements.WithLabelValues("duplicate").Inc()
		log.Info("order already settled, stock untouched")
		return result, nil
	}

	metrics.Settlements.WithLabelValues("fresh").Inc()
	log.Info("order paid and stock adjusted",
		zap.Int64("amount_cents", result.AmountCents),
		zap.Int("adjusted_products", len(result.Adjustments)),
	)

	s.publishPaid(ctx, log, result)
	return result, nil
}

func (s *service) publishPaid(ctx context.Context, log *zap.Logger, result *SettlementResult) {
	evt := events.OrderPaidEvent{
		OrderID:     result.OrderID,
		AmountCents: result.AmountCents,
		Currency:    result.Currency,
		PaidAt:      s.now().UTC(),
	}
	for _, adj := range result.Adjustments {
		evt.Stock = append(evt.Stock, events.OrderPaidItem{
			ProductID: adj.ProductID,
			Slug:      adj.Slug,
			Remaining: adj.Quantity,
		})
	}

	if err := s.publisher.PublishOrderPaid(ctx, evt); err != nil {
		log.Warn("failed to publish order.paid", zap.Error(err))
	}
}

func (s *service) Fail(ctx context.Context, orderID uuid.UUID) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Fail"),
		zap.String("order_id", orderID.String()),
	)

	changed, err := s.repo.MarkFailed(ctx, orderID)
	if err != nil {
		log.Error("failed to mark order failed", zap.Error(err))
		return false, err
	}
	if !changed {
		log.Info("order not pending, failure ignored")
		return false, nil
	}

	log.Info("order marked failed")
	return true, nil
}

func (s *service) ResolveBySession(ctx context.Context, sessionID string) (uuid.UUID, error) {
	return s.repo.FindBySessionID(ctx, sessionID)
}
