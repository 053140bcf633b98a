package store

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// ReplaceTransactions deletes every transaction owned by the statement and
// inserts the new set in one transaction. Sort order follows slice order so
// the original document ordering survives round trips.
func (s *Service) ReplaceTransactions(ctx context.Context, statementID string, txs []*models.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ReplaceTransactions: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE statement_id = ?`, statementID); err != nil {
		return fmt.Errorf("ReplaceTransactions: delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, statement_id, date, description, amount, balance, type, reference, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("ReplaceTransactions: prepare: %w", err)
	}
	defer stmt.Close()

	for i, t := range txs {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.StatementID = statementID
		t.SortOrder = i

		var balance interface{}
		if t.Balance != nil {
			balance = t.Balance.String()
		}

		if _, err := stmt.ExecContext(ctx,
			t.ID, statementID, dayString(t.Date), t.Description,
			t.Amount.String(), balance, string(t.Type), t.Reference, t.SortOrder,
		); err != nil {
			return fmt.Errorf("ReplaceTransactions: insert %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ReplaceTransactions: commit: %w", err)
	}
	return nil
}

// ListTransactionsByStatement returns a statement's transactions in their
// original document order.
func (s *Service) ListTransactionsByStatement(ctx context.Context, statementID string) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, statement_id, date, description, amount, balance, type, reference, sort_order
		FROM transactions WHERE statement_id = ?
		ORDER BY sort_order ASC`, statementID)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByStatement: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListTransactionsForUserOnDate returns every transaction dated on the given
// calendar day across all of a user's processed statements, used by the
// day drill-down.
func (s *Service) ListTransactionsForUserOnDate(ctx context.Context, userID string, day civil.Date) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.statement_id, t.date, t.description, t.amount, t.balance, t.type, t.reference, t.sort_order
		FROM transactions t
		JOIN statements st ON st.id = t.statement_id
		WHERE st.user_id = ? AND st.status = ? AND t.date = ?
		ORDER BY t.sort_order ASC`,
		userID, string(models.ProcessingDone), dayString(day))
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsForUserOnDate: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for rows.Next() {
		var (
			t       models.Transaction
			date    string
			amount  string
			balance sql.NullString
			typ     string
		)
		if err := rows.Scan(&t.ID, &t.StatementID, &date, &t.Description,
			&amount, &balance, &typ, &t.Reference, &t.SortOrder); err != nil {
			return nil, err
		}
		var err error
		if t.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		if t.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if balance.Valid {
			b, err := parseAmount(balance.String)
			if err != nil {
				return nil, err
			}
			t.Balance = &b
		}
		t.Type = models.TransactionType(typ)
		out = append(out, &t)
	}
	return out, rows.Err()
}
