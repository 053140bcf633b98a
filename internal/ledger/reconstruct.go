package ledger

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// seriesPoint is one end-of-day balance in a reconstructed account series.
type seriesPoint struct {
	Day     civil.Date
	Balance decimal.Decimal
}

// canonDay normalizes a possibly non-calendar date (some statements print
// things like Feb 30) onto the real calendar so day arithmetic is safe.
func canonDay(d civil.Date) civil.Date {
	return civil.DateOf(d.In(time.UTC))
}

// reconstructSeries rebuilds the dense end-of-day balance series for one
// linked account from its processed statements.
//
// Each statement anchors a walk at its opening balance: the net transaction
// amount of each day is applied in calendar order, and every day of the
// period gets the balance after the last transaction on or before it.
// Statements are applied in period order,
// so when periods overlap the later statement's days win. Days not covered
// by any statement, including the stretch from the last period end up to
// today, carry the previous day's balance forward.
func reconstructSeries(statements []*models.Statement, transactions map[string][]*models.Transaction, today civil.Date) []seriesPoint {
	known := make(map[civil.Date]decimal.Decimal)
	var first, last civil.Date

	for _, st := range statements {
		start := canonDay(st.PeriodStart)
		end := canonDay(st.PeriodEnd)
		if end.Before(start) {
			continue
		}
		if first.Year == 0 || start.Before(first) {
			first = start
		}
		if end.After(last) {
			last = end
		}

		// Net amount per date, so the extractor's transaction order does not
		// matter. Dates are compared as strings so non-calendar dates still
		// order correctly.
		perDay := make(map[string]decimal.Decimal)
		for _, tx := range transactions[st.ID] {
			k := tx.Date.String()
			perDay[k] = perDay[k].Add(tx.Amount)
		}
		keys := make([]string, 0, len(perDay))
		for k := range perDay {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		bal := st.OpeningBalance
		idx := 0
		for d := start; !d.After(end); d = d.AddDays(1) {
			for idx < len(keys) && keys[idx] <= d.String() {
				bal = bal.Add(perDay[keys[idx]])
				idx++
			}
			known[d] = bal
		}
	}

	if first.Year == 0 {
		return nil
	}

	end := today
	if end.Before(last) {
		end = last
	}
	series := make([]seriesPoint, 0, end.DaysSince(first)+1)
	var bal decimal.Decimal
	have := false
	for d := first; !d.After(end); d = d.AddDays(1) {
		if v, ok := known[d]; ok {
			bal = v
			have = true
		}
		if have {
			series = append(series, seriesPoint{Day: d, Balance: bal})
		}
	}
	return series
}
