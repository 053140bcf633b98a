package ledger

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// Store is the persistence surface the ledger engine needs. Implemented by
// the SQLite store; mocked in tests.
type Store interface {
	ListNetWorthAccounts(ctx context.Context, userID string) ([]*models.NetWorthAccount, error)
	ListProcessedStatementsByBankAccount(ctx context.Context, bankAccountID string) ([]*models.Statement, error)
	ListTransactionsByStatement(ctx context.Context, statementID string) ([]*models.Transaction, error)
	LatestClosingBalance(ctx context.Context, bankAccountID string) (string, bool, error)
	UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error

	ReplaceDailyLedger(ctx context.Context, userID string, balances []models.DailyAccountBalance, netWorth []models.DailyNetWorth) error
	GetDailyNetWorth(ctx context.Context, userID string, since civil.Date) ([]models.DailyNetWorth, error)
	GetDailyAccountBalances(ctx context.Context, userID string, day civil.Date) ([]models.DailyAccountBalance, error)
	ListTransactionsForUserOnDate(ctx context.Context, userID string, day civil.Date) ([]*models.Transaction, error)
	NearestNetWorthOnOrBefore(ctx context.Context, userID string, day civil.Date) (*models.DailyNetWorth, error)
}
