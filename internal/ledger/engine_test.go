package ledger

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

type mockStore struct {
	ListNetWorthAccountsFunc                 func(ctx context.Context, userID string) ([]*models.NetWorthAccount, error)
	ListProcessedStatementsByBankAccountFunc func(ctx context.Context, bankAccountID string) ([]*models.Statement, error)
	ListTransactionsByStatementFunc          func(ctx context.Context, statementID string) ([]*models.Transaction, error)
	LatestClosingBalanceFunc                 func(ctx context.Context, bankAccountID string) (string, bool, error)
	NearestNetWorthOnOrBeforeFunc            func(ctx context.Context, userID string, day civil.Date) (*models.DailyNetWorth, error)
	GetDailyNetWorthFunc                     func(ctx context.Context, userID string, since civil.Date) ([]models.DailyNetWorth, error)
	GetDailyAccountBalancesFunc              func(ctx context.Context, userID string, day civil.Date) ([]models.DailyAccountBalance, error)
	ListTransactionsForUserOnDateFunc        func(ctx context.Context, userID string, day civil.Date) ([]*models.Transaction, error)

	updatedBalances  map[string]decimal.Decimal
	replacedBalances []models.DailyAccountBalance
	replacedNetWorth []models.DailyNetWorth
	replaceCalls     int
}

func (m *mockStore) ListNetWorthAccounts(ctx context.Context, userID string) ([]*models.NetWorthAccount, error) {
	return m.ListNetWorthAccountsFunc(ctx, userID)
}

func (m *mockStore) ListProcessedStatementsByBankAccount(ctx context.Context, bankAccountID string) ([]*models.Statement, error) {
	if m.ListProcessedStatementsByBankAccountFunc != nil {
		return m.ListProcessedStatementsByBankAccountFunc(ctx, bankAccountID)
	}
	return nil, nil
}

func (m *mockStore) ListTransactionsByStatement(ctx context.Context, statementID string) ([]*models.Transaction, error) {
	if m.ListTransactionsByStatementFunc != nil {
		return m.ListTransactionsByStatementFunc(ctx, statementID)
	}
	return nil, nil
}

func (m *mockStore) LatestClosingBalance(ctx context.Context, bankAccountID string) (string, bool, error) {
	if m.LatestClosingBalanceFunc != nil {
		return m.LatestClosingBalanceFunc(ctx, bankAccountID)
	}
	return "", false, nil
}

func (m *mockStore) UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	if m.updatedBalances == nil {
		m.updatedBalances = make(map[string]decimal.Decimal)
	}
	m.updatedBalances[accountID] = balance
	return nil
}

func (m *mockStore) ReplaceDailyLedger(ctx context.Context, userID string, balances []models.DailyAccountBalance, netWorth []models.DailyNetWorth) error {
	m.replacedBalances = balances
	m.replacedNetWorth = netWorth
	m.replaceCalls++
	return nil
}

func (m *mockStore) GetDailyNetWorth(ctx context.Context, userID string, since civil.Date) ([]models.DailyNetWorth, error) {
	if m.GetDailyNetWorthFunc != nil {
		return m.GetDailyNetWorthFunc(ctx, userID, since)
	}
	return nil, nil
}

func (m *mockStore) GetDailyAccountBalances(ctx context.Context, userID string, day civil.Date) ([]models.DailyAccountBalance, error) {
	if m.GetDailyAccountBalancesFunc != nil {
		return m.GetDailyAccountBalancesFunc(ctx, userID, day)
	}
	return nil, nil
}

func (m *mockStore) ListTransactionsForUserOnDate(ctx context.Context, userID string, day civil.Date) ([]*models.Transaction, error) {
	if m.ListTransactionsForUserOnDateFunc != nil {
		return m.ListTransactionsForUserOnDateFunc(ctx, userID, day)
	}
	return nil, nil
}

func (m *mockStore) NearestNetWorthOnOrBefore(ctx context.Context, userID string, day civil.Date) (*models.DailyNetWorth, error) {
	if m.NearestNetWorthOnOrBeforeFunc != nil {
		return m.NearestNetWorthOnOrBeforeFunc(ctx, userID, day)
	}
	return nil, nil
}

func fixedEngine(store *mockStore, today civil.Date) *Engine {
	e := NewEngine(store, zerolog.Nop())
	e.now = func() time.Time {
		return time.Date(today.Year, today.Month, today.Day, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func netWorthOn(t *testing.T, rows []models.DailyNetWorth, d civil.Date) models.DailyNetWorth {
	t.Helper()
	for _, r := range rows {
		if r.Date == d {
			return r
		}
	}
	t.Fatalf("no net worth row for %s", d)
	return models.DailyNetWorth{}
}

func TestRecalculateNetWorth(t *testing.T) {
	today := day(2024, time.March, 10)

	checking := &models.NetWorthAccount{ID: "nw-checking", AccountType: models.AccountAsset, BankAccountID: "ba-1"}
	card := &models.NetWorthAccount{ID: "nw-card", AccountType: models.AccountLiability, BankAccountID: "ba-2"}
	cash := &models.NetWorthAccount{ID: "nw-cash", AccountType: models.AccountAsset, IsManual: true, CurrentBalance: dec("200")}

	store := &mockStore{
		ListNetWorthAccountsFunc: func(ctx context.Context, userID string) ([]*models.NetWorthAccount, error) {
			return []*models.NetWorthAccount{checking, card, cash}, nil
		},
		ListProcessedStatementsByBankAccountFunc: func(ctx context.Context, bankAccountID string) ([]*models.Statement, error) {
			switch bankAccountID {
			case "ba-1":
				return []*models.Statement{statement("st-chk", day(2024, time.March, 1), day(2024, time.March, 5), "1000")}, nil
			case "ba-2":
				return []*models.Statement{statement("st-card", day(2024, time.March, 3), day(2024, time.March, 5), "-300")}, nil
			}
			return nil, nil
		},
		ListTransactionsByStatementFunc: func(ctx context.Context, statementID string) ([]*models.Transaction, error) {
			if statementID == "st-chk" {
				return []*models.Transaction{tx(day(2024, time.March, 2), "-100")}, nil
			}
			return nil, nil
		},
		LatestClosingBalanceFunc: func(ctx context.Context, bankAccountID string) (string, bool, error) {
			switch bankAccountID {
			case "ba-1":
				return "900", true, nil
			case "ba-2":
				return "-300", true, nil
			}
			return "", false, nil
		},
	}

	e := fixedEngine(store, today)
	require.NoError(t, e.RecalculateNetWorth(context.Background(), "user-1"))
	require.Equal(t, 1, store.replaceCalls)

	// Current balances are reset from the latest processed statements.
	assert.True(t, store.updatedBalances["nw-checking"].Equal(dec("900")))
	assert.True(t, store.updatedBalances["nw-card"].Equal(dec("-300")))

	// March 1 and 2: only checking has data yet, plus the manual account.
	d1 := netWorthOn(t, store.replacedNetWorth, day(2024, time.March, 1))
	assert.True(t, d1.TotalAssets.Equal(dec("1200")), "assets %s", d1.TotalAssets)
	assert.True(t, d1.TotalLiabilities.IsZero())
	assert.True(t, d1.NetWorth.Equal(dec("1200")))

	// March 3 on: checking 900, card -300 (abs as liability), cash 200.
	d3 := netWorthOn(t, store.replacedNetWorth, day(2024, time.March, 3))
	assert.True(t, d3.TotalAssets.Equal(dec("1100")), "assets %s", d3.TotalAssets)
	assert.True(t, d3.TotalLiabilities.Equal(dec("300")))
	assert.True(t, d3.NetWorth.Equal(dec("800")))

	// The series is carried forward to today.
	dToday := netWorthOn(t, store.replacedNetWorth, today)
	assert.True(t, dToday.NetWorth.Equal(dec("800")))

	// Rows are dense and ordered from the earliest statement day to today.
	require.Len(t, store.replacedNetWorth, 10)
	for i, row := range store.replacedNetWorth {
		assert.Equal(t, day(2024, time.March, 1).AddDays(i), row.Date)
	}
}

func TestRecalculateNetWorthIsIdempotent(t *testing.T) {
	today := day(2024, time.March, 10)
	checking := &models.NetWorthAccount{ID: "nw-1", AccountType: models.AccountAsset, BankAccountID: "ba-1"}

	store := &mockStore{
		ListNetWorthAccountsFunc: func(ctx context.Context, userID string) ([]*models.NetWorthAccount, error) {
			return []*models.NetWorthAccount{checking}, nil
		},
		ListProcessedStatementsByBankAccountFunc: func(ctx context.Context, bankAccountID string) ([]*models.Statement, error) {
			return []*models.Statement{statement("st-1", day(2024, time.March, 1), day(2024, time.March, 5), "100")}, nil
		},
		LatestClosingBalanceFunc: func(ctx context.Context, bankAccountID string) (string, bool, error) {
			return "100", true, nil
		},
	}

	e := fixedEngine(store, today)
	require.NoError(t, e.RecalculateNetWorth(context.Background(), "user-1"))
	first := store.replacedNetWorth

	require.NoError(t, e.RecalculateNetWorth(context.Background(), "user-1"))
	assert.Equal(t, first, store.replacedNetWorth)
	assert.Equal(t, 2, store.replaceCalls)
}

func TestRecalculateNetWorthNoLinkedData(t *testing.T) {
	// Manual accounts alone produce no ledger days: there is no statement
	// history to define the date range.
	cash := &models.NetWorthAccount{ID: "nw-cash", AccountType: models.AccountAsset, IsManual: true, CurrentBalance: dec("500")}

	store := &mockStore{
		ListNetWorthAccountsFunc: func(ctx context.Context, userID string) ([]*models.NetWorthAccount, error) {
			return []*models.NetWorthAccount{cash}, nil
		},
	}

	e := fixedEngine(store, day(2024, time.March, 10))
	require.NoError(t, e.RecalculateNetWorth(context.Background(), "user-1"))
	assert.Empty(t, store.replacedNetWorth)
	assert.Empty(t, store.replacedBalances)
}

func TestRecalculateNetWorthZeroesBalanceWithoutStatements(t *testing.T) {
	checking := &models.NetWorthAccount{ID: "nw-1", AccountType: models.AccountAsset, BankAccountID: "ba-1", CurrentBalance: dec("999")}

	store := &mockStore{
		ListNetWorthAccountsFunc: func(ctx context.Context, userID string) ([]*models.NetWorthAccount, error) {
			return []*models.NetWorthAccount{checking}, nil
		},
	}

	e := fixedEngine(store, day(2024, time.March, 10))
	require.NoError(t, e.RecalculateNetWorth(context.Background(), "user-1"))
	assert.True(t, store.updatedBalances["nw-1"].IsZero())
}

func TestGetNetWorthSummary(t *testing.T) {
	today := day(2024, time.June, 15)
	snapshots := map[string]*models.DailyNetWorth{}
	put := func(d civil.Date, nw string) {
		snapshots[d.String()] = &models.DailyNetWorth{Date: d, NetWorth: dec(nw)}
	}
	put(today, "5000")
	put(day(2024, time.May, 15), "4200")
	put(day(2023, time.June, 15), "1000")

	store := &mockStore{
		NearestNetWorthOnOrBeforeFunc: func(ctx context.Context, userID string, d civil.Date) (*models.DailyNetWorth, error) {
			return snapshots[d.String()], nil
		},
	}

	e := fixedEngine(store, today)
	s, err := e.GetNetWorthSummary(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, today, s.AsOf)
	assert.True(t, s.NetWorth.Equal(dec("5000")))
	require.NotNil(t, s.MonthChange)
	assert.True(t, s.MonthChange.Equal(dec("800")))
	require.NotNil(t, s.YearChange)
	assert.True(t, s.YearChange.Equal(dec("4000")))
}

func TestGetNetWorthSummaryNoHistory(t *testing.T) {
	today := day(2024, time.June, 15)
	latest := &models.DailyNetWorth{Date: today, NetWorth: dec("5000")}

	store := &mockStore{
		NearestNetWorthOnOrBeforeFunc: func(ctx context.Context, userID string, d civil.Date) (*models.DailyNetWorth, error) {
			if d == today {
				return latest, nil
			}
			return nil, nil
		},
	}

	e := fixedEngine(store, today)
	s, err := e.GetNetWorthSummary(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Nil(t, s.MonthChange)
	assert.Nil(t, s.YearChange)
}

func TestGetNetWorthSummaryEmptyLedger(t *testing.T) {
	store := &mockStore{}
	e := fixedEngine(store, day(2024, time.June, 15))

	s, err := e.GetNetWorthSummary(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, s.NetWorth.IsZero())
	assert.Nil(t, s.MonthChange)
}

func TestGetDayDrillDown(t *testing.T) {
	d := day(2024, time.March, 2)
	store := &mockStore{
		GetDailyAccountBalancesFunc: func(ctx context.Context, userID string, day civil.Date) ([]models.DailyAccountBalance, error) {
			return []models.DailyAccountBalance{{AccountID: "nw-1", Date: day, Balance: dec("850")}}, nil
		},
		ListTransactionsForUserOnDateFunc: func(ctx context.Context, userID string, day civil.Date) ([]*models.Transaction, error) {
			return []*models.Transaction{tx(day, "-150")}, nil
		},
	}

	e := fixedEngine(store, d)
	dd, err := e.GetDayDrillDown(context.Background(), "user-1", d)
	require.NoError(t, err)

	assert.Equal(t, d, dd.Date)
	require.Len(t, dd.Accounts, 1)
	assert.True(t, dd.Accounts[0].Balance.Equal(dec("850")))
	require.Len(t, dd.Transactions, 1)
	assert.True(t, dd.Transactions[0].Amount.Equal(dec("-150")))
}
