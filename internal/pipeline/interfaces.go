package pipeline

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry in the extraction conversation. Turns are plain values:
// the orchestrator accumulates them and passes the whole history into every
// extraction call, so retries carry no hidden session state.
type Turn struct {
	Role    Role
	Content string
}

// ExtractionClient turns statement text (carried in the conversation
// history) into a structured candidate statement.
type ExtractionClient interface {
	Extract(ctx context.Context, turns []Turn) (*ExtractedStatement, error)
}

// TextExtractor converts raw document bytes into plain text. Empty text is
// a hard processing failure for the orchestrator.
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// Categorizer assigns categories to a persisted transaction batch. Failures
// are logged and ignored; categorization never fails a statement.
type Categorizer interface {
	CategorizeStatement(ctx context.Context, statementID string) error
}

// FeedReconciler resolves provisionally-synced feed transactions that
// overlap a freshly persisted statement period. Failures are non-fatal.
type FeedReconciler interface {
	ReconcilePeriod(ctx context.Context, userID, accountNumber string, periodStart, periodEnd civil.Date) error
}

// Repository is the persistence seam the orchestrator drives. Implemented
// by the SQLite store; mocked in tests.
type Repository interface {
	CreateStatement(ctx context.Context, st *models.Statement) error
	UpdateStatement(ctx context.Context, st *models.Statement) error
	MarkStatementError(ctx context.Context, statementID, message string) error
	IsDuplicatePeriod(ctx context.Context, st *models.Statement) (bool, error)
	ReplaceTransactions(ctx context.Context, statementID string, txs []*models.Transaction) error
	UpsertBalanceVerification(ctx context.Context, v *models.BalanceVerification) error
	FindOrCreateBankAccount(ctx context.Context, userID, accountNumber, bankName string) (*models.BankAccount, error)
}
