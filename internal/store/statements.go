package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

const statementColumns = `
	id, user_id, bank_account_id, bank_name, account_number,
	statement_date, period_start, period_end,
	opening_balance, closing_balance, total_deposits, total_withdrawals,
	status, error_message, verification_status, discrepancy_amount,
	file_uri, filename, timezone, created_at, updated_at`

// CreateStatement inserts a new statement row. When the statement carries a
// period, it is first checked against already-processed statements for the
// same (user, account number, period) and ErrDuplicateStatement is returned
// on a collision. Reprocessing an existing row goes through UpdateStatement
// instead, which never re-runs this check.
func (s *Service) CreateStatement(ctx context.Context, st *models.Statement) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.Status == "" {
		st.Status = models.ProcessingPending
	}

	if st.AccountNumber != "" && dayString(st.PeriodStart) != "" && dayString(st.PeriodEnd) != "" {
		dup, err := s.IsDuplicatePeriod(ctx, st)
		if err != nil {
			return fmt.Errorf("CreateStatement: duplicate check: %w", err)
		}
		if dup {
			return ErrDuplicateStatement
		}
	}

	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statements (
			id, user_id, bank_account_id, bank_name, account_number,
			statement_date, period_start, period_end,
			opening_balance, closing_balance, total_deposits, total_withdrawals,
			status, error_message, verification_status, discrepancy_amount,
			file_uri, filename, timezone, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.UserID, st.BankAccountID, st.BankName, st.AccountNumber,
		dayString(st.StatementDate), dayString(st.PeriodStart), dayString(st.PeriodEnd),
		st.OpeningBalance.String(), st.ClosingBalance.String(),
		st.TotalDeposits.String(), st.TotalWithdrawals.String(),
		string(st.Status), st.ErrorMessage, string(st.VerificationStatus),
		st.DiscrepancyAmount.String(),
		st.FileURI, st.Filename, st.Timezone, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateStatement: inserting row: %w", err)
	}
	return nil
}

// IsDuplicatePeriod reports whether another already-processed statement
// covers the same (user, account number, period) triple. The orchestrator
// runs this once, on its first iteration; reprocessing by id skips it.
func (s *Service) IsDuplicatePeriod(ctx context.Context, st *models.Statement) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM statements
		WHERE user_id = ? AND account_number = ?
		  AND period_start = ? AND period_end = ?
		  AND status = ? AND id != ?
		LIMIT 1`,
		st.UserID, st.AccountNumber,
		dayString(st.PeriodStart), dayString(st.PeriodEnd),
		string(models.ProcessingDone), st.ID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateStatement overwrites all mutable fields of an existing statement.
// The orchestrator calls this on every retry iteration under the same id.
func (s *Service) UpdateStatement(ctx context.Context, st *models.Statement) error {
	st.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE statements SET
			bank_account_id = ?, bank_name = ?, account_number = ?,
			statement_date = ?, period_start = ?, period_end = ?,
			opening_balance = ?, closing_balance = ?,
			total_deposits = ?, total_withdrawals = ?,
			status = ?, error_message = ?,
			verification_status = ?, discrepancy_amount = ?,
			file_uri = ?, filename = ?, timezone = ?, updated_at = ?
		WHERE id = ?`,
		st.BankAccountID, st.BankName, st.AccountNumber,
		dayString(st.StatementDate), dayString(st.PeriodStart), dayString(st.PeriodEnd),
		st.OpeningBalance.String(), st.ClosingBalance.String(),
		st.TotalDeposits.String(), st.TotalWithdrawals.String(),
		string(st.Status), st.ErrorMessage,
		string(st.VerificationStatus), st.DiscrepancyAmount.String(),
		st.FileURI, st.Filename, st.Timezone, st.UpdatedAt,
		st.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatement: rows affected: %w", err)
	}
	if n == 0 {
		return ErrStatementNotFound
	}
	return nil
}

// MarkStatementError finalizes a statement in the error state with a
// human-readable message.
func (s *Service) MarkStatementError(ctx context.Context, statementID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE statements SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(models.ProcessingError), message, time.Now().UTC(), statementID)
	if err != nil {
		return fmt.Errorf("MarkStatementError: %w", err)
	}
	return nil
}

func (s *Service) GetStatement(ctx context.Context, statementID string) (*models.Statement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE id = ?`, statementID)
	st, err := scanStatement(row)
	if err == sql.ErrNoRows {
		return nil, ErrStatementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}
	return st, nil
}

// ListStatements returns all of a user's statements, newest period first.
func (s *Service) ListStatements(ctx context.Context, userID string) ([]*models.Statement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statementColumns+` FROM statements
		 WHERE user_id = ? ORDER BY period_start DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListStatements: %w", err)
	}
	defer rows.Close()
	return collectStatements(rows)
}

// ListProcessedStatementsByBankAccount returns successfully processed
// statements for a bank account ordered by period start, the order the
// daily-balance reconstructor walks them in.
func (s *Service) ListProcessedStatementsByBankAccount(ctx context.Context, bankAccountID string) ([]*models.Statement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statementColumns+` FROM statements
		 WHERE bank_account_id = ? AND status = ?
		 ORDER BY period_start ASC, updated_at ASC`,
		bankAccountID, string(models.ProcessingDone))
	if err != nil {
		return nil, fmt.Errorf("ListProcessedStatementsByBankAccount: %w", err)
	}
	defer rows.Close()
	return collectStatements(rows)
}

// LatestClosingBalance returns the closing balance of the most recent
// processed statement for a bank account, or (zero, false) when none remain.
func (s *Service) LatestClosingBalance(ctx context.Context, bankAccountID string) (string, bool, error) {
	var closing string
	err := s.db.QueryRowContext(ctx, `
		SELECT closing_balance FROM statements
		WHERE bank_account_id = ? AND status = ?
		ORDER BY period_end DESC, updated_at DESC
		LIMIT 1`,
		bankAccountID, string(models.ProcessingDone)).Scan(&closing)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("LatestClosingBalance: %w", err)
	}
	return closing, true, nil
}

// DeleteStatement removes a statement; its transactions and verification
// record go with it via ON DELETE CASCADE. The caller is responsible for
// triggering net-worth recalculation afterwards.
func (s *Service) DeleteStatement(ctx context.Context, statementID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM statements WHERE id = ?`, statementID)
	if err != nil {
		return fmt.Errorf("DeleteStatement: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrStatementNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStatement(r rowScanner) (*models.Statement, error) {
	var (
		st                                 models.Statement
		stmtDate, periodStart, periodEnd   string
		opening, closing, deposits, wdraws string
		status, verification, discrepancy  string
	)
	err := r.Scan(
		&st.ID, &st.UserID, &st.BankAccountID, &st.BankName, &st.AccountNumber,
		&stmtDate, &periodStart, &periodEnd,
		&opening, &closing, &deposits, &wdraws,
		&status, &st.ErrorMessage, &verification, &discrepancy,
		&st.FileURI, &st.Filename, &st.Timezone, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if st.StatementDate, err = parseDay(stmtDate); err != nil {
		return nil, err
	}
	if st.PeriodStart, err = parseDay(periodStart); err != nil {
		return nil, err
	}
	if st.PeriodEnd, err = parseDay(periodEnd); err != nil {
		return nil, err
	}
	if st.OpeningBalance, err = parseAmount(opening); err != nil {
		return nil, err
	}
	if st.ClosingBalance, err = parseAmount(closing); err != nil {
		return nil, err
	}
	if st.TotalDeposits, err = parseAmount(deposits); err != nil {
		return nil, err
	}
	if st.TotalWithdrawals, err = parseAmount(wdraws); err != nil {
		return nil, err
	}
	if st.DiscrepancyAmount, err = parseAmount(discrepancy); err != nil {
		return nil, err
	}
	st.Status = models.ProcessingStatus(status)
	st.VerificationStatus = models.VerificationStatus(verification)
	return &st, nil
}

func collectStatements(rows *sql.Rows) ([]*models.Statement, error) {
	var out []*models.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
