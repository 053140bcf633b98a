package store

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// ReplaceDailyLedger atomically swaps a user's entire reconstructed ledger:
// all prior daily account balances and daily net worth rows are deleted and
// the new sets inserted in one transaction. A reader sees the old ledger or
// the new one, never a partially rebuilt state.
func (s *Service) ReplaceDailyLedger(ctx context.Context, userID string, balances []models.DailyAccountBalance, netWorth []models.DailyNetWorth) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ReplaceDailyLedger: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM daily_account_balances WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("ReplaceDailyLedger: delete balances: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM daily_net_worth WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("ReplaceDailyLedger: delete net worth: %w", err)
	}

	balStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_account_balances (user_id, account_id, date, balance)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("ReplaceDailyLedger: prepare balances: %w", err)
	}
	defer balStmt.Close()

	for _, b := range balances {
		if _, err := balStmt.ExecContext(ctx, userID, b.AccountID, dayString(b.Date), b.Balance.String()); err != nil {
			return fmt.Errorf("ReplaceDailyLedger: insert balance %s/%s: %w", b.AccountID, b.Date, err)
		}
	}

	nwStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_net_worth (user_id, date, total_assets, total_liabilities, net_worth)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("ReplaceDailyLedger: prepare net worth: %w", err)
	}
	defer nwStmt.Close()

	for _, n := range netWorth {
		if _, err := nwStmt.ExecContext(ctx, userID, dayString(n.Date),
			n.TotalAssets.String(), n.TotalLiabilities.String(), n.NetWorth.String()); err != nil {
			return fmt.Errorf("ReplaceDailyLedger: insert net worth %s: %w", n.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ReplaceDailyLedger: commit: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Int("balance_rows", len(balances)).
		Int("net_worth_rows", len(netWorth)).
		Msg("Replaced daily ledger")
	return nil
}

// GetDailyNetWorth returns a user's net-worth series in ascending date
// order. A zero since date means the full history.
func (s *Service) GetDailyNetWorth(ctx context.Context, userID string, since civil.Date) ([]models.DailyNetWorth, error) {
	query := `
		SELECT user_id, date, total_assets, total_liabilities, net_worth
		FROM daily_net_worth WHERE user_id = ?`
	args := []interface{}{userID}
	if since.Year != 0 {
		query += ` AND date >= ?`
		args = append(args, dayString(since))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetDailyNetWorth: %w", err)
	}
	defer rows.Close()

	var out []models.DailyNetWorth
	for rows.Next() {
		n, err := scanDailyNetWorth(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetDailyAccountBalances returns every account's balance for one day.
func (s *Service) GetDailyAccountBalances(ctx context.Context, userID string, day civil.Date) ([]models.DailyAccountBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, account_id, date, balance
		FROM daily_account_balances
		WHERE user_id = ? AND date = ?
		ORDER BY account_id ASC`, userID, dayString(day))
	if err != nil {
		return nil, fmt.Errorf("GetDailyAccountBalances: %w", err)
	}
	defer rows.Close()

	var out []models.DailyAccountBalance
	for rows.Next() {
		var (
			b       models.DailyAccountBalance
			date    string
			balance string
		)
		if err := rows.Scan(&b.UserID, &b.AccountID, &date, &balance); err != nil {
			return nil, err
		}
		if b.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		if b.Balance, err = parseAmount(balance); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// NearestNetWorthOnOrBefore finds the closest snapshot at or before the
// given day, used for month-over-month and year-over-year deltas. Returns
// nil when no snapshot exists that far back.
func (s *Service) NearestNetWorthOnOrBefore(ctx context.Context, userID string, day civil.Date) (*models.DailyNetWorth, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, date, total_assets, total_liabilities, net_worth
		FROM daily_net_worth
		WHERE user_id = ? AND date <= ?
		ORDER BY date DESC LIMIT 1`, userID, dayString(day))

	n, err := scanDailyNetWorth(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("NearestNetWorthOnOrBefore: %w", err)
	}
	return &n, nil
}

func scanDailyNetWorth(r rowScanner) (models.DailyNetWorth, error) {
	var (
		n                         models.DailyNetWorth
		date, assets, liabilities string
		netWorth                  string
	)
	err := r.Scan(&n.UserID, &date, &assets, &liabilities, &netWorth)
	if err != nil {
		return n, err
	}
	if n.Date, err = parseDay(date); err != nil {
		return n, err
	}
	if n.TotalAssets, err = parseAmount(assets); err != nil {
		return n, err
	}
	if n.TotalLiabilities, err = parseAmount(liabilities); err != nil {
		return n, err
	}
	if n.NetWorth, err = parseAmount(netWorth); err != nil {
		return n, err
	}
	return n, nil
}
