package payment

import (
	"context"
	"database/sql"
	"encoding/json"
)

// Repository is the webhook delivery log. It is an audit trail; settlement
// idempotence is enforced by the order store.
type Repository interface {
	RecordDelivery(
		ctx context.Context,
		provider string,
		eventID string,
		eventType string,
		sessionID string,
		payload json.RawMessage,
	) (webhookID int64, alreadyProcessed bool, err error)

	MarkProcessed(ctx context.Context, webhookID int64) error
	MarkFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) RecordDelivery(
	ctx context.Context,
	provider string,
	eventID string,
	eventType string,
	sessionID string,
	payload json.RawMessage,
) (int64, bool, error) {

	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		session_id,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET delivery_count = payment_webhooks.delivery_count + 1
	RETURNING id, status = 'processed';
	`

	var id int64
	var processed bool
	err := r.db.QueryRowContext(
		ctx,
		q,
		provider,
		eventID,
		eventType,
		sql.NullString{String: sessionID, Valid: sessionID != ""},
		[]byte(payload),
	).Scan(&id, &processed)
	if err != nil {
		return 0, false, err
	}

	return id, processed, nil
}

func (r *repository) MarkProcessed(
	ctx context.Context,
	webhookID int64,
) error {

	const q = `
	UPDATE payment_webhooks
	SET status = 'processed', processed_at = now(), failure_reason = NULL
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkFailed(
	ctx context.Context,
	webhookID int64,
	reason string,
) error {

	const q = `
	UPDATE payment_webhooks
	SET status = 'failed', failure_reason = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
