package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// FindOrCreateBankAccount resolves the stable identity for a (user, account
// number) pair, creating it and a linked NetWorthAccount line on first
// sight. Account numbers are compared after trimming whitespace.
func (s *Service) FindOrCreateBankAccount(ctx context.Context, userID, accountNumber, bankName string) (*models.BankAccount, error) {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return nil, fmt.Errorf("FindOrCreateBankAccount: account number cannot be empty")
	}

	var acct models.BankAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, account_number, bank_name, created_at
		FROM bank_accounts WHERE user_id = ? AND account_number = ?`,
		userID, number).Scan(&acct.ID, &acct.UserID, &acct.AccountNumber, &acct.BankName, &acct.CreatedAt)
	if err == nil {
		return &acct, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("FindOrCreateBankAccount: lookup: %w", err)
	}

	acct = models.BankAccount{
		ID:            uuid.NewString(),
		UserID:        userID,
		AccountNumber: number,
		BankName:      bankName,
		CreatedAt:     time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("FindOrCreateBankAccount: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bank_accounts (id, user_id, account_number, bank_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		acct.ID, acct.UserID, acct.AccountNumber, acct.BankName, acct.CreatedAt); err != nil {
		return nil, fmt.Errorf("FindOrCreateBankAccount: insert: %w", err)
	}

	// First statement for this account number also creates the user-visible
	// net-worth line it feeds.
	name := bankName
	if name == "" {
		name = "Account " + number
	} else {
		name = fmt.Sprintf("%s %s", bankName, number)
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO net_worth_accounts (
			id, user_id, name, account_type, category, current_balance,
			currency, is_manual, bank_account_id, active, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, 1, 0, ?, ?)`,
		uuid.NewString(), userID, name, string(models.AccountAsset), "cash",
		"0", "USD", acct.ID, now, now); err != nil {
		return nil, fmt.Errorf("FindOrCreateBankAccount: insert net worth line: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("FindOrCreateBankAccount: commit: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("account_number", number).
		Str("bank_account_id", acct.ID).
		Msg("Created bank account")
	return &acct, nil
}

const netWorthAccountColumns = `
	id, user_id, name, account_type, category, current_balance,
	currency, is_manual, bank_account_id, active, sort_order, created_at, updated_at`

// ListNetWorthAccounts returns all active net-worth lines for a user in
// sort order.
func (s *Service) ListNetWorthAccounts(ctx context.Context, userID string) ([]*models.NetWorthAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+netWorthAccountColumns+` FROM net_worth_accounts
		 WHERE user_id = ? AND active = 1
		 ORDER BY sort_order ASC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListNetWorthAccounts: %w", err)
	}
	defer rows.Close()

	var out []*models.NetWorthAccount
	for rows.Next() {
		a, err := scanNetWorthAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Service) GetNetWorthAccount(ctx context.Context, accountID string) (*models.NetWorthAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+netWorthAccountColumns+` FROM net_worth_accounts WHERE id = ?`, accountID)
	a, err := scanNetWorthAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetNetWorthAccount: %w", err)
	}
	return a, nil
}

// CreateManualAccount inserts a manual asset/liability line whose balance
// is set directly by the user.
func (s *Service) CreateManualAccount(ctx context.Context, a *models.NetWorthAccount) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.IsManual = true
	a.Active = true
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO net_worth_accounts (
			id, user_id, name, account_type, category, current_balance,
			currency, is_manual, bank_account_id, active, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, '', 1, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.AccountType), a.Category,
		a.CurrentBalance.String(), a.Currency, a.SortOrder, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("CreateManualAccount: %w", err)
	}
	return nil
}

// UpdateAccountBalance sets a net-worth line's current balance.
func (s *Service) UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE net_worth_accounts SET current_balance = ?, updated_at = ?
		WHERE id = ?`,
		balance.String(), time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UnlinkAccount detaches a net-worth line from its bank account, turning it
// into a manual line. The caller triggers recalculation afterwards.
func (s *Service) UnlinkAccount(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE net_worth_accounts SET bank_account_id = '', is_manual = 1, updated_at = ?
		WHERE id = ?`, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("UnlinkAccount: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes a net-worth line. Linked statements survive under
// the bank account; recalculation decides what the remaining data means.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM net_worth_accounts WHERE id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanNetWorthAccount(r rowScanner) (*models.NetWorthAccount, error) {
	var (
		a           models.NetWorthAccount
		accountType string
		balance     string
	)
	err := r.Scan(&a.ID, &a.UserID, &a.Name, &accountType, &a.Category, &balance,
		&a.Currency, &a.IsManual, &a.BankAccountID, &a.Active, &a.SortOrder,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.AccountType = models.AccountType(accountType)
	if a.CurrentBalance, err = parseAmount(balance); err != nil {
		return nil, err
	}
	return &a, nil
}
