package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// BankAccount is the stable identity for a (user, account number) pair.
// It is auto-created the first time a statement references an account
// number the user has not uploaded before.
type BankAccount struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AccountNumber string    `json:"account_number"`
	BankName      string    `json:"bank_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// AccountType classifies a net-worth line as an asset or a liability.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
)

// NetWorthAccount is a user-visible asset/liability line. A linked account
// derives its balance from statement history via BankAccountID; a manual
// account carries a user-entered CurrentBalance and no transaction history.
type NetWorthAccount struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	AccountType AccountType `json:"account_type"`
	Category    string      `json:"category,omitempty"`

	CurrentBalance decimal.Decimal `json:"current_balance"`
	Currency       string          `json:"currency"`

	IsManual      bool   `json:"is_manual"`
	BankAccountID string `json:"bank_account_id,omitempty"` // empty for manual accounts

	Active    bool `json:"active"`
	SortOrder int  `json:"sort_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyAccountBalance is the reconstructed end-of-day balance for one
// account on one calendar day. Rows are fully regenerated on every
// rebuild, never patched.
type DailyAccountBalance struct {
	UserID    string          `json:"user_id"`
	AccountID string          `json:"account_id"` // NetWorthAccount ID
	Date      civil.Date      `json:"date"`
	Balance   decimal.Decimal `json:"balance"`
}

// DailyNetWorth is the per-user aggregate for one calendar day.
type DailyNetWorth struct {
	UserID           string          `json:"user_id"`
	Date             civil.Date      `json:"date"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetWorth         decimal.Decimal `json:"net_worth"`
}

// NetWorthSummary is the current net worth with month-over-month and
// year-over-year deltas, computed from the nearest prior snapshots.
type NetWorthSummary struct {
	AsOf             civil.Date      `json:"as_of"`
	NetWorth         decimal.Decimal `json:"net_worth"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`

	MonthChange *decimal.Decimal `json:"month_change,omitempty"` // nil when no snapshot exists a month back
	YearChange  *decimal.Decimal `json:"year_change,omitempty"`
}

// DayDrillDown lists every account balance and transaction contributing
// to a single calendar day.
type DayDrillDown struct {
	Date         civil.Date            `json:"date"`
	Accounts     []DailyAccountBalance `json:"accounts"`
	Transactions []Transaction         `json:"transactions"`
}
