package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// Engine rebuilds and serves the daily net-worth ledger. Rebuilds are full:
// every derived row for the user is regenerated and swapped in atomically,
// so the engine is idempotent and safe to re-run after every statement.
type Engine struct {
	store Store
	log   zerolog.Logger

	// now is injectable for tests; the ledger is carried forward to "today"
	// in UTC.
	now func() time.Time
}

func NewEngine(store Store, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log, now: time.Now}
}

func (e *Engine) today() civil.Date {
	return civil.DateOf(e.now().UTC())
}

// RecalculateNetWorth resets every linked account's current balance from
// its statement history, reconstructs all per-account daily series, and
// replaces the user's daily ledger in one transaction. There is one code
// path for every trigger, whether a freshly processed statement, a deleted
// one, or an account change; recomputing from scratch makes each rebuild a
// full recalculation.
func (e *Engine) RecalculateNetWorth(ctx context.Context, userID string) error {
	accounts, err := e.store.ListNetWorthAccounts(ctx, userID)
	if err != nil {
		return fmt.Errorf("RecalculateNetWorth: list accounts: %w", err)
	}

	today := e.today()
	series := make(map[string][]seriesPoint, len(accounts))

	for _, a := range accounts {
		if a.IsManual {
			continue
		}

		// A linked account's current balance is always derived, never
		// trusted: the latest processed closing balance, or zero when no
		// statement survives.
		latest, ok, err := e.store.LatestClosingBalance(ctx, a.BankAccountID)
		if err != nil {
			return fmt.Errorf("RecalculateNetWorth: latest closing balance for %s: %w", a.ID, err)
		}
		balance := decimal.Zero
		if ok {
			balance, err = decimal.NewFromString(latest)
			if err != nil {
				return fmt.Errorf("RecalculateNetWorth: closing balance for %s: %w", a.ID, err)
			}
		}
		if err := e.store.UpdateAccountBalance(ctx, a.ID, balance); err != nil {
			return fmt.Errorf("RecalculateNetWorth: update balance for %s: %w", a.ID, err)
		}
		a.CurrentBalance = balance

		statements, err := e.store.ListProcessedStatementsByBankAccount(ctx, a.BankAccountID)
		if err != nil {
			return fmt.Errorf("RecalculateNetWorth: list statements for %s: %w", a.ID, err)
		}
		transactions := make(map[string][]*models.Transaction, len(statements))
		for _, st := range statements {
			txs, err := e.store.ListTransactionsByStatement(ctx, st.ID)
			if err != nil {
				return fmt.Errorf("RecalculateNetWorth: list transactions for %s: %w", st.ID, err)
			}
			transactions[st.ID] = txs
		}
		series[a.ID] = reconstructSeries(statements, transactions, today)
	}

	balances, netWorth := e.aggregate(userID, accounts, series)

	if err := e.store.ReplaceDailyLedger(ctx, userID, balances, netWorth); err != nil {
		return fmt.Errorf("RecalculateNetWorth: %w", err)
	}

	e.log.Info().
		Str("user_id", userID).
		Int("accounts", len(accounts)).
		Int("days", len(netWorth)).
		Msg("Net worth ledger rebuilt")
	return nil
}

// aggregate flattens the per-account series into daily balance rows and
// per-day net-worth totals. Manual accounts contribute their constant
// current balance on every day the ledger covers; a linked account is
// excluded from days before its series starts.
func (e *Engine) aggregate(userID string, accounts []*models.NetWorthAccount, series map[string][]seriesPoint) ([]models.DailyAccountBalance, []models.DailyNetWorth) {
	type dayTotals struct {
		assets      decimal.Decimal
		liabilities decimal.Decimal
	}
	totals := make(map[civil.Date]*dayTotals)
	var balances []models.DailyAccountBalance

	add := func(a *models.NetWorthAccount, day civil.Date, balance decimal.Decimal) {
		balances = append(balances, models.DailyAccountBalance{
			UserID:    userID,
			AccountID: a.ID,
			Date:      day,
			Balance:   balance,
		})
		t, ok := totals[day]
		if !ok {
			t = &dayTotals{assets: decimal.Zero, liabilities: decimal.Zero}
			totals[day] = t
		}
		if a.AccountType == models.AccountLiability {
			t.liabilities = t.liabilities.Add(balance.Abs())
		} else {
			t.assets = t.assets.Add(balance)
		}
	}

	for _, a := range accounts {
		if a.IsManual {
			continue
		}
		for _, p := range series[a.ID] {
			add(a, p.Day, p.Balance)
		}
	}

	// Manual accounts ride along on whatever days the linked data defines.
	if len(totals) > 0 {
		days := make([]civil.Date, 0, len(totals))
		for d := range totals {
			days = append(days, d)
		}
		for _, a := range accounts {
			if !a.IsManual {
				continue
			}
			for _, d := range days {
				add(a, d, a.CurrentBalance)
			}
		}
	}

	netWorth := make([]models.DailyNetWorth, 0, len(totals))
	for d, t := range totals {
		netWorth = append(netWorth, models.DailyNetWorth{
			UserID:           userID,
			Date:             d,
			TotalAssets:      t.assets,
			TotalLiabilities: t.liabilities,
			NetWorth:         t.assets.Sub(t.liabilities),
		})
	}
	sort.Slice(netWorth, func(i, j int) bool { return netWorth[i].Date.Before(netWorth[j].Date) })
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].Date != balances[j].Date {
			return balances[i].Date.Before(balances[j].Date)
		}
		return balances[i].AccountID < balances[j].AccountID
	})

	return balances, netWorth
}

// GetDailyNetWorth returns the stored daily series, optionally filtered to
// days on or after since (zero value means the full history).
func (e *Engine) GetDailyNetWorth(ctx context.Context, userID string, since civil.Date) ([]models.DailyNetWorth, error) {
	days, err := e.store.GetDailyNetWorth(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("GetDailyNetWorth: %w", err)
	}
	return days, nil
}

// GetDayDrillDown explains one ledger day: every account's reconstructed
// balance plus the statement transactions dated that day.
func (e *Engine) GetDayDrillDown(ctx context.Context, userID string, day civil.Date) (*models.DayDrillDown, error) {
	accounts, err := e.store.GetDailyAccountBalances(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("GetDayDrillDown: account balances: %w", err)
	}
	txs, err := e.store.ListTransactionsForUserOnDate(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("GetDayDrillDown: transactions: %w", err)
	}

	dd := &models.DayDrillDown{Date: day, Accounts: accounts}
	dd.Transactions = make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		dd.Transactions = append(dd.Transactions, *tx)
	}
	return dd, nil
}

// GetNetWorthSummary returns the latest snapshot with month-over-month and
// year-over-year deltas. Deltas are nil when no snapshot exists far enough
// back to compare against.
func (e *Engine) GetNetWorthSummary(ctx context.Context, userID string) (*models.NetWorthSummary, error) {
	today := e.today()

	latest, err := e.store.NearestNetWorthOnOrBefore(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("GetNetWorthSummary: %w", err)
	}
	if latest == nil {
		return &models.NetWorthSummary{AsOf: today}, nil
	}

	summary := &models.NetWorthSummary{
		AsOf:             latest.Date,
		NetWorth:         latest.NetWorth,
		TotalAssets:      latest.TotalAssets,
		TotalLiabilities: latest.TotalLiabilities,
	}

	summary.MonthChange, err = e.changeSince(ctx, userID, latest, today.In(time.UTC).AddDate(0, -1, 0))
	if err != nil {
		return nil, fmt.Errorf("GetNetWorthSummary: month change: %w", err)
	}
	summary.YearChange, err = e.changeSince(ctx, userID, latest, today.In(time.UTC).AddDate(-1, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("GetNetWorthSummary: year change: %w", err)
	}
	return summary, nil
}

func (e *Engine) changeSince(ctx context.Context, userID string, latest *models.DailyNetWorth, at time.Time) (*decimal.Decimal, error) {
	prior, err := e.store.NearestNetWorthOnOrBefore(ctx, userID, civil.DateOf(at))
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}
	change := latest.NetWorth.Sub(prior.NetWorth)
	return &change, nil
}
