package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// Hard failures: these abort statement processing immediately and are never
// retried, because they indicate an unrecognized document rather than a
// transient extraction slip.
var (
	ErrEmptyStatementText   = errors.New("no text could be extracted from the document")
	ErrUnrecognizedDocument = errors.New("document was not recognized as a bank statement")
	ErrMissingPeriod        = errors.New("statement period could not be determined")
	ErrMissingBalances      = errors.New("opening or closing balance could not be determined")
	ErrDuplicatePeriod      = errors.New("statement already imported for this account and period")
)

// DefaultMaxIterations is the extraction retry budget: one initial attempt
// plus two corrective re-prompts.
const DefaultMaxIterations = 3

// Orchestrator drives the bounded extract/persist/verify loop for a single
// statement.
type Orchestrator struct {
	repo          Repository
	client        ExtractionClient
	categorizer   Categorizer
	reconciler    FeedReconciler
	maxIterations int
	log           zerolog.Logger
}

func NewOrchestrator(repo Repository, client ExtractionClient, categorizer Categorizer, reconciler FeedReconciler, maxIterations int, log zerolog.Logger) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Orchestrator{
		repo:          repo,
		client:        client,
		categorizer:   categorizer,
		reconciler:    reconciler,
		maxIterations: maxIterations,
		log:           log,
	}
}

// ProcessParams carries one statement-processing request.
type ProcessParams struct {
	UserID   string
	Text     string
	FileURI  string
	Filename string
	Timezone string
}

// ProcessResult is what callers get back after the loop terminates.
type ProcessResult struct {
	Statement        *models.Statement
	TransactionCount int
	IsBalanced       bool
}

// ProcessStatement runs the full loop. Every run terminates in a stored
// statement whose status is done (balanced or not) or error; balance
// mismatches and dropped-date transactions drive the retry loop while
// missing period/balance fields, extractor-reported errors and transport
// errors abort immediately.
func (o *Orchestrator) ProcessStatement(ctx context.Context, params ProcessParams) (*ProcessResult, error) {
	if strings.TrimSpace(params.Text) == "" {
		return nil, ErrEmptyStatementText
	}

	st := &models.Statement{
		UserID:   params.UserID,
		Status:   models.ProcessingInProgress,
		FileURI:  params.FileURI,
		Filename: params.Filename,
		Timezone: params.Timezone,
	}
	if err := o.repo.CreateStatement(ctx, st); err != nil {
		return nil, fmt.Errorf("ProcessStatement: create statement: %w", err)
	}

	turns := []Turn{{Role: RoleUser, Content: buildExtractionPrompt(params.Text, params.Timezone)}}

	var (
		lastResult  VerificationResult
		lastTxCount int
	)

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		ext, err := o.client.Extract(ctx, turns)
		if err != nil {
			return nil, o.fail(ctx, st, fmt.Errorf("extraction failed: %w", err))
		}
		if ext.Status == "error" {
			msg := ext.ErrorMessage
			if msg == "" {
				msg = "extractor could not read the document"
			}
			return nil, o.fail(ctx, st, fmt.Errorf("%w: %s", ErrUnrecognizedDocument, msg))
		}

		txs, dropped, err := o.applyExtraction(st, ext)
		if err != nil {
			return nil, o.fail(ctx, st, err)
		}

		if iteration == 1 {
			dup, err := o.repo.IsDuplicatePeriod(ctx, st)
			if err != nil {
				return nil, o.fail(ctx, st, fmt.Errorf("duplicate check: %w", err))
			}
			if dup {
				return nil, o.fail(ctx, st, fmt.Errorf("%w: %s %s to %s",
					ErrDuplicatePeriod, st.AccountNumber, st.PeriodStart, st.PeriodEnd))
			}
		}

		acct, err := o.repo.FindOrCreateBankAccount(ctx, st.UserID, st.AccountNumber, st.BankName)
		if err != nil {
			return nil, o.fail(ctx, st, fmt.Errorf("linking bank account: %w", err))
		}
		st.BankAccountID = acct.ID

		if err := o.repo.UpdateStatement(ctx, st); err != nil {
			return nil, o.fail(ctx, st, fmt.Errorf("persisting statement: %w", err))
		}
		if err := o.repo.ReplaceTransactions(ctx, st.ID, txs); err != nil {
			return nil, o.fail(ctx, st, fmt.Errorf("persisting transactions: %w", err))
		}

		lastResult = VerifyBalance(st.OpeningBalance, txs, st.ClosingBalance)
		lastTxCount = len(txs)
		if err := recordVerification(ctx, o.repo, st, txs, lastResult); err != nil {
			return nil, o.fail(ctx, st, err)
		}

		o.log.Info().
			Str("statement_id", st.ID).
			Int("iteration", iteration).
			Int("transactions", len(txs)).
			Int("dropped", len(dropped)).
			Bool("balanced", lastResult.IsBalanced).
			Str("discrepancy", lastResult.Discrepancy.String()).
			Msg("Extraction iteration finished")

		if lastResult.IsBalanced && len(dropped) == 0 {
			break
		}
		if iteration == o.maxIterations {
			// Retry budget exhausted: keep the best attempt rather than
			// failing the whole statement.
			break
		}

		turns = append(turns,
			Turn{Role: RoleModel, Content: ext.Raw},
			Turn{Role: RoleUser, Content: buildFeedbackPrompt(lastResult, len(dropped), dropped)},
		)
	}

	st.Status = models.ProcessingDone
	st.ErrorMessage = ""
	if err := o.repo.UpdateStatement(ctx, st); err != nil {
		return nil, fmt.Errorf("ProcessStatement: finalizing statement: %w", err)
	}

	o.runDownstream(ctx, st)

	return &ProcessResult{
		Statement:        st,
		TransactionCount: lastTxCount,
		IsBalanced:       lastResult.IsBalanced,
	}, nil
}

// applyExtraction maps the model output onto the statement and builds the
// transaction list. Transactions whose dates fail normalization are dropped
// and their descriptions returned for feedback; missing period or balance
// fields are hard errors.
func (o *Orchestrator) applyExtraction(st *models.Statement, ext *ExtractedStatement) ([]*models.Transaction, []string, error) {
	if ext.PeriodStart == nil || ext.PeriodEnd == nil {
		return nil, nil, ErrMissingPeriod
	}
	periodStart, ok := NormalizeDay(*ext.PeriodStart)
	if !ok {
		return nil, nil, fmt.Errorf("%w: invalid period start %q", ErrMissingPeriod, *ext.PeriodStart)
	}
	periodEnd, ok := NormalizeDay(*ext.PeriodEnd)
	if !ok {
		return nil, nil, fmt.Errorf("%w: invalid period end %q", ErrMissingPeriod, *ext.PeriodEnd)
	}
	if ext.OpeningBalance == nil || ext.ClosingBalance == nil {
		return nil, nil, ErrMissingBalances
	}

	st.BankName = ext.BankName
	st.AccountNumber = strings.TrimSpace(ext.AccountNumber)
	st.PeriodStart = periodStart
	st.PeriodEnd = periodEnd
	st.OpeningBalance = decimal.NewFromFloat(*ext.OpeningBalance)
	st.ClosingBalance = decimal.NewFromFloat(*ext.ClosingBalance)
	if ext.TotalDeposits != nil {
		st.TotalDeposits = decimal.NewFromFloat(*ext.TotalDeposits)
	}
	if ext.TotalWithdrawals != nil {
		st.TotalWithdrawals = decimal.NewFromFloat(*ext.TotalWithdrawals)
	}
	if day, ok := NormalizeDay(ext.StatementDate); ok {
		st.StatementDate = day
	}

	txs := make([]*models.Transaction, 0, len(ext.Transactions))
	var dropped []string
	for _, et := range ext.Transactions {
		day, ok := NormalizeDay(et.Date)
		if !ok {
			dropped = append(dropped, et.Description)
			continue
		}

		amount := decimal.NewFromFloat(et.Amount)
		typ := models.TransactionType(et.Type)
		if typ != models.TransactionCredit && typ != models.TransactionDebit {
			if amount.IsNegative() {
				typ = models.TransactionDebit
			} else {
				typ = models.TransactionCredit
			}
		}

		t := &models.Transaction{
			Date:        day,
			Description: et.Description,
			Amount:      amount,
			Type:        typ,
			Reference:   et.Reference,
		}
		if et.Balance != nil {
			b := decimal.NewFromFloat(*et.Balance)
			t.Balance = &b
		}
		txs = append(txs, t)
	}

	return txs, dropped, nil
}

// fail finalizes the statement in the error state and returns the cause.
func (o *Orchestrator) fail(ctx context.Context, st *models.Statement, cause error) error {
	if err := o.repo.MarkStatementError(ctx, st.ID, cause.Error()); err != nil {
		o.log.Error().Err(err).Str("statement_id", st.ID).Msg("Failed to record statement error")
	}
	return fmt.Errorf("ProcessStatement: %w", cause)
}

// runDownstream invokes the categorizer and the feed reconciler. Both are
// best-effort: failures are logged and never roll back the statement.
func (o *Orchestrator) runDownstream(ctx context.Context, st *models.Statement) {
	if o.categorizer != nil {
		if err := o.categorizer.CategorizeStatement(ctx, st.ID); err != nil {
			o.log.Warn().Err(err).Str("statement_id", st.ID).Msg("Transaction categorization failed")
		}
	}
	if o.reconciler != nil {
		if err := o.reconciler.ReconcilePeriod(ctx, st.UserID, st.AccountNumber, st.PeriodStart, st.PeriodEnd); err != nil {
			o.log.Warn().Err(err).Str("statement_id", st.ID).Msg("Feed reconciliation failed")
		}
	}
}
