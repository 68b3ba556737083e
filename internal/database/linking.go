package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chri75252/simpler-fba/internal/linking"
	"github.com/chri75252/simpler-fba/internal/models"
)

// LinkingRepository mirrors the file-backed linking map into Postgres so that
// links survive cache wipes and can be queried across runs.
type LinkingRepository struct {
	db *DB
}

func NewLinkingRepository(db *DB) *LinkingRepository {
	return &LinkingRepository{db: db}
}

// Upsert stores a linking entry, keeping the existing row when it holds a
// higher confidence for the same supplier product. Entries whose match method
// and confidence disagree are rejected.
func (r *LinkingRepository) Upsert(ctx context.Context, entry *models.LinkingEntry) error {
	if !entry.Consistent() {
		return fmt.Errorf("%w: method=%s confidence=%.4f",
			linking.ErrInconsistentEntry, entry.MatchMethod, entry.Confidence)
	}
	if entry.LinkedAt.IsZero() {
		entry.LinkedAt = time.Now()
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var existing float64
		err := tx.QueryRow(ctx, `
			SELECT confidence_score FROM linking_entry
			WHERE supplier_name = $1 AND supplier_product_identifier = $2
			FOR UPDATE`,
			entry.SupplierName, entry.SupplierProductID).Scan(&existing)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// fall through to insert
		case err != nil:
			return fmt.Errorf("failed to check existing link: %w", err)
		case existing >= entry.Confidence:
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO linking_entry (
				supplier_product_identifier, supplier_name,
				chosen_amazon_asin, match_method, confidence_score, linked_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (supplier_name, supplier_product_identifier) DO UPDATE SET
				chosen_amazon_asin = EXCLUDED.chosen_amazon_asin,
				match_method = EXCLUDED.match_method,
				confidence_score = EXCLUDED.confidence_score,
				linked_at = EXCLUDED.linked_at`,
			entry.SupplierProductID, entry.SupplierName,
			entry.ASIN, entry.MatchMethod, entry.Confidence, entry.LinkedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert linking entry: %w", err)
		}
		return nil
	})
}

// Get fetches one linking entry by supplier and product identifier.
func (r *LinkingRepository) Get(ctx context.Context, supplierName, productID string) (*models.LinkingEntry, error) {
	entry := &models.LinkingEntry{}
	err := r.db.pool.QueryRow(ctx, `
		SELECT supplier_product_identifier, supplier_name,
			chosen_amazon_asin, match_method, confidence_score, linked_at
		FROM linking_entry
		WHERE supplier_name = $1 AND supplier_product_identifier = $2`,
		supplierName, productID).Scan(
		&entry.SupplierProductID, &entry.SupplierName,
		&entry.ASIN, &entry.MatchMethod, &entry.Confidence, &entry.LinkedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linking entry: %w", err)
	}
	return entry, nil
}

// ListBySupplier returns all links for a supplier, newest first.
func (r *LinkingRepository) ListBySupplier(ctx context.Context, supplierName string) ([]*models.LinkingEntry, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT supplier_product_identifier, supplier_name,
			chosen_amazon_asin, match_method, confidence_score, linked_at
		FROM linking_entry
		WHERE supplier_name = $1
		ORDER BY linked_at DESC`, supplierName)
	if err != nil {
		return nil, fmt.Errorf("failed to list linking entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LinkingEntry
	for rows.Next() {
		entry := &models.LinkingEntry{}
		if err := rows.Scan(
			&entry.SupplierProductID, &entry.SupplierName,
			&entry.ASIN, &entry.MatchMethod, &entry.Confidence, &entry.LinkedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan linking entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
