package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"barboeuf-be/internal/logger"
	"barboeuf-be/internal/metrics"
	"barboeuf-be/internal/order"
	"barboeuf-be/internal/payment"
	"barboeuf-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 1 << 20
	signatureHeader = "Stripe-Signature"
)

var errUnresolvable = errors.New("notification does not resolve to an order")

// Handler reconciles payment provider notifications with the order store.
type Handler struct {
	OrderSvc order.Service
	Gateway  payment.Gateway
	Repo     payment.Repository
}

func NewWebhookHandler(orderSvc order.Service, gateway payment.Gateway, repo payment.Repository) *Handler {
	return &Handler{
		OrderSvc: orderSvc,
		Gateway:  gateway,
		Repo:     repo,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("layer", "webhook"))

	eventType := "unknown"
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing webhook", zap.Any("panic", rec), zap.Stack("stack"))
			metrics.WebhookEvents.WithLabelValues(eventType, "panic").Inc()
			utils.WriteJSONError(w, "processing failed", http.StatusInternalServerError)
		}
	}()

	if r.Method != http.MethodPost {
		utils.MethodNotAllowed(w)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", zap.Error(err))
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	evt, err := h.Gateway.ParseWebhook(body, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrWebhookNotConfigured):
		log.Error("webhook secret missing, cannot verify notifications")
		metrics.WebhookEvents.WithLabelValues(eventType, "not_configured").Inc()
		utils.WriteJSONError(w, "Webhook not configured", http.StatusInternalServerError)
		return
	case errors.Is(err, payment.ErrInvalidSignature):
		log.Warn("webhook signature verification failed", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues(eventType, "invalid_signature").Inc()
		utils.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "Webhook signature verification failed",
			"detail": err.Error(),
		})
		return
	default:
		// Signed by the provider but not decodable.
		log.Error("verified webhook could not be decoded", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues(eventType, "malformed").Inc()
		utils.WriteJSONError(w, "processing failed", http.StatusInternalServerError)
		return
	}

	eventType = evt.Type
	log = log.With(
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.String("session_id", evt.SessionID),
	)

	webhookID, alreadyProcessed, err := h.Repo.RecordDelivery(
		ctx,
		payment.ProviderStripe,
		evt.ID,
		evt.Type,
		evt.SessionID,
		evt.Payload,
	)
	if err != nil {
		log.Warn("failed to record webhook delivery", zap.Error(err))
		webhookID = 0
	} else if alreadyProcessed {
		log.Info("webhook already processed, acknowledging")
		metrics.WebhookEvents.WithLabelValues(eventType, "duplicate").Inc()
		writeReceived(w)
		return
	}

	outcome, err := h.process(ctx, log, evt)
	switch {
	case err == nil:
		h.markProcessed(ctx, log, webhookID)
	case errors.Is(err, errUnresolvable):
		log.Warn("webhook could not be matched to an order, acknowledging", zap.String("order_ref", evt.OrderID))
		h.markFailed(ctx, log, webhookID, err.Error())
		outcome = "unresolved"
	default:
		h.markFailed(ctx, log, webhookID, err.Error())
		metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
		if outcome == "settlement_error" {
			utils.WriteJSONError(w, "settlement failed", http.StatusInternalServerError)
			return
		}
		utils.WriteJSONError(w, "processing failed", http.StatusInternalServerError)
		return
	}

	metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	writeReceived(w)
}

// process applies one verified notification. It returns the metrics outcome
// and an error; errUnresolvable is acknowledged, anything else asks the
// provider to retry.
func (h *Handler) process(ctx context.Context, log *zap.Logger, evt *payment.WebhookEvent) (string, error) {
	switch evt.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncPaymentSucceeded:
		if evt.Type == payment.EventCheckoutCompleted && evt.PaymentStatus == payment.PaymentStatusUnpaid {
			log.Info("checkout completed but payment still pending, waiting for async result")
			return "awaiting_payment", nil
		}

		orderID, err := h.resolveOrder(ctx, log, evt)
		if err != nil {
			return "lookup_error", err
		}

		result, err := h.OrderSvc.Settle(ctx, orderID)
		if errors.Is(err, order.ErrOrderNotFound) {
			return "unresolved", errUnresolvable
		}
		if err != nil {
			return "settlement_error", fmt.Errorf("settle order %s: %w", orderID, err)
		}
		if result.AlreadySettled && result.Status != order.StatusPaid {
			return "paid_not_pending", nil
		}
		if result.AlreadySettled {
			return "already_settled", nil
		}
		return "settled", nil

	case payment.EventCheckoutExpired, payment.EventCheckoutAsyncPaymentFailed:
		orderID, err := h.resolveOrder(ctx, log, evt)
		if err != nil {
			return "lookup_error", err
		}

		changed, err := h.OrderSvc.Fail(ctx, orderID)
		if err != nil {
			return "fail_error", fmt.Errorf("fail order %s: %w", orderID, err)
		}
		if !changed {
			return "ignored", nil
		}
		return "failed", nil

	default:
		log.Debug("ignoring unhandled webhook type")
		return "ignored", nil
	}
}

// resolveOrder prefers the order id stamped into the session metadata and
// falls back to the stored session reference.
func (h *Handler) resolveOrder(ctx context.Context, log *zap.Logger, evt *payment.WebhookEvent) (uuid.UUID, error) {
	if evt.OrderID != "" {
		id, err := uuid.Parse(evt.OrderID)
		if err == nil {
			return id, nil
		}
		log.Warn("malformed order_id in session metadata", zap.String("order_ref", evt.OrderID))
	}

	if evt.SessionID == "" {
		return uuid.Nil, errUnresolvable
	}

	id, err := h.OrderSvc.ResolveBySession(ctx, evt.SessionID)
	if errors.Is(err, order.ErrOrderNotFound) {
		return uuid.Nil, errUnresolvable
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup order by session: %w", err)
	}
	return id, nil
}

func (h *Handler) markProcessed(ctx context.Context, log *zap.Logger, webhookID int64) {
	if webhookID == 0 {
		return
	}
	if err := h.Repo.MarkProcessed(ctx, webhookID); err != nil {
		log.Warn("failed to mark webhook processed", zap.Int64("webhook_id", webhookID), zap.Error(err))
	}
}

func (h *Handler) markFailed(ctx context.Context, log *zap.Logger, webhookID int64, reason string) {
	if webhookID == 0 {
		return
	}
	if err := h.Repo.MarkFailed(ctx, webhookID, reason); err != nil {
		log.Warn("failed to mark webhook failed", zap.Int64("webhook_id", webhookID), zap.Error(err))
	}
}

func writeReceived(w http.ResponseWriter) {
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
