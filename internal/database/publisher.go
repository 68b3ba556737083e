package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/chri75252/simpler-fba/internal/report"
)

// EventTypeDealFound is emitted for every row that clears the profitability
// floors.
const EventTypeDealFound = "PROFITABLE_DEAL_FOUND"

// DealPublisher writes profitable deals to the outbox. The relay moves them
// to Redis afterwards; pipeline runs never talk to Redis directly.
type DealPublisher struct {
	db     *DB
	outbox *OutboxRepository
	logger *slog.Logger
}

func NewDealPublisher(db *DB, logger *slog.Logger) *DealPublisher {
	return &DealPublisher{
		db:     db,
		outbox: NewOutboxRepository(db),
		logger: logger.With("component", "deal_publisher"),
	}
}

// PublishDeal stores the deal event in the outbox within a single
// transaction.
func (p *DealPublisher) PublishDeal(ctx context.Context, row report.Row) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal deal: %w", err)
	}

	err = p.db.WithTx(ctx, func(tx pgx.Tx) error {
		return p.outbox.InsertWithTx(ctx, tx, &OutboxEvent{
			AggregateType: "deal",
			AggregateID:   row.ASIN,
			EventType:     EventTypeDealFound,
			Payload:       payload,
			TargetStream:  DealAlertStream,
		})
	})
	if err != nil {
		return err
	}

	p.logger.Info("deal queued for alert",
		"asin", row.ASIN,
		"supplier", row.SupplierName,
		"roi", row.ROI)
	return nil
}
