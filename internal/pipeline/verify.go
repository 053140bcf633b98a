package pipeline

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// balanceEpsilon is the flat absolute tolerance for closing-balance
// comparison, covering float rounding in extracted amounts. It is the same
// 0.01 regardless of currency or magnitude.
var balanceEpsilon = decimal.NewFromFloat(0.01)

// VerificationResult is the outcome of recomputing a statement's closing
// balance from its opening balance and transactions.
type VerificationResult struct {
	Calculated  decimal.Decimal
	IsBalanced  bool
	Discrepancy decimal.Decimal
}

// VerifyBalance recomputes closing = opening + sum(amounts) and compares it
// to the reported closing balance. Discrepancy is calculated minus reported
// when unbalanced, exactly zero otherwise.
func VerifyBalance(opening decimal.Decimal, txs []*models.Transaction, reportedClosing decimal.Decimal) VerificationResult {
	calculated := opening
	for _, t := range txs {
		calculated = calculated.Add(t.Amount)
	}

	diff := calculated.Sub(reportedClosing)
	if diff.Abs().LessThan(balanceEpsilon) {
		return VerificationResult{Calculated: calculated, IsBalanced: true, Discrepancy: decimal.Zero}
	}
	return VerificationResult{Calculated: calculated, IsBalanced: false, Discrepancy: diff}
}

// recordVerification upserts the statement's BalanceVerification row and
// mirrors the outcome onto the statement's verification fields.
func recordVerification(ctx context.Context, repo Repository, st *models.Statement, txs []*models.Transaction, res VerificationResult) error {
	note := "closing balance matches recomputed transactions"
	if !res.IsBalanced {
		note = fmt.Sprintf("calculated closing %s differs from reported %s by %s",
			res.Calculated.String(), st.ClosingBalance.String(), res.Discrepancy.String())
	}

	v := &models.BalanceVerification{
		StatementID:       st.ID,
		CalculatedOpening: st.OpeningBalance,
		CalculatedClosing: res.Calculated,
		ReportedOpening:   st.OpeningBalance,
		ReportedClosing:   st.ClosingBalance,
		IsBalanced:        res.IsBalanced,
		Discrepancy:       res.Discrepancy,
		Note:              note,
	}
	if err := repo.UpsertBalanceVerification(ctx, v); err != nil {
		return fmt.Errorf("recordVerification: %w", err)
	}

	if res.IsBalanced {
		st.VerificationStatus = models.VerificationVerified
	} else {
		st.VerificationStatus = models.VerificationUnbalanced
	}
	st.DiscrepancyAmount = res.Discrepancy
	return nil
}
