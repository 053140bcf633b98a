package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// UpsertBalanceVerification replaces the statement's verification record.
// One record per statement; each verification run overwrites the previous.
func (s *Service) UpsertBalanceVerification(ctx context.Context, v *models.BalanceVerification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.VerifiedAt.IsZero() {
		v.VerifiedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balance_verifications (
			id, statement_id,
			calculated_opening, calculated_closing, reported_opening, reported_closing,
			is_balanced, discrepancy, note, verified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(statement_id) DO UPDATE SET
			calculated_opening = excluded.calculated_opening,
			calculated_closing = excluded.calculated_closing,
			reported_opening = excluded.reported_opening,
			reported_closing = excluded.reported_closing,
			is_balanced = excluded.is_balanced,
			discrepancy = excluded.discrepancy,
			note = excluded.note,
			verified_at = excluded.verified_at`,
		v.ID, v.StatementID,
		v.CalculatedOpening.String(), v.CalculatedClosing.String(),
		v.ReportedOpening.String(), v.ReportedClosing.String(),
		v.IsBalanced, v.Discrepancy.String(), v.Note, v.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("UpsertBalanceVerification: %w", err)
	}
	return nil
}

// GetBalanceVerification returns the verification record for a statement,
// or nil when verification has not run yet.
func (s *Service) GetBalanceVerification(ctx context.Context, statementID string) (*models.BalanceVerification, error) {
	var (
		v                            models.BalanceVerification
		calcOpen, calcClose, repOpen string
		repClose, discrepancy        string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, statement_id,
		       calculated_opening, calculated_closing, reported_opening, reported_closing,
		       is_balanced, discrepancy, note, verified_at
		FROM balance_verifications WHERE statement_id = ?`, statementID).Scan(
		&v.ID, &v.StatementID,
		&calcOpen, &calcClose, &repOpen, &repClose,
		&v.IsBalanced, &discrepancy, &v.Note, &v.VerifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBalanceVerification: %w", err)
	}

	if v.CalculatedOpening, err = parseAmount(calcOpen); err != nil {
		return nil, err
	}
	if v.CalculatedClosing, err = parseAmount(calcClose); err != nil {
		return nil, err
	}
	if v.ReportedOpening, err = parseAmount(repOpen); err != nil {
		return nil, err
	}
	if v.ReportedClosing, err = parseAmount(repClose); err != nil {
		return nil, err
	}
	if v.Discrepancy, err = parseAmount(discrepancy); err != nil {
		return nil, err
	}
	return &v, nil
}
