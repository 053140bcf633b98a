package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ProcessingStatus tracks a statement through its lifecycle.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingDone       ProcessingStatus = "done"
	ProcessingError      ProcessingStatus = "error"
)

// VerificationStatus records the outcome of balance verification.
type VerificationStatus string

const (
	VerificationVerified      VerificationStatus = "verified"
	VerificationUnbalanced    VerificationStatus = "unbalanced"
	VerificationHumanVerified VerificationStatus = "human_verified"
)

// Statement is one uploaded bank statement covering a date period.
// AccountNumber is an opaque string and may be partial or masked.
type Statement struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	BankAccountID string `json:"bank_account_id,omitempty"`

	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`

	StatementDate civil.Date `json:"statement_date"`
	PeriodStart   civil.Date `json:"period_start"`
	PeriodEnd     civil.Date `json:"period_end"`

	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`

	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`

	Status       ProcessingStatus `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`

	VerificationStatus VerificationStatus `json:"verification_status,omitempty"`
	DiscrepancyAmount  decimal.Decimal    `json:"discrepancy_amount"`

	// FileURI references the original document, e.g. "gs://bucket/object.pdf".
	FileURI  string `json:"file_uri,omitempty"`
	Filename string `json:"filename,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionType distinguishes credits (money in) from debits (money out).
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Transaction is one ledger line belonging to a statement. Transactions are
// owned by their statement and replaced wholesale on every re-extraction.
type Transaction struct {
	ID          string `json:"id"`
	StatementID string `json:"statement_id"`

	Date        civil.Date `json:"date"`
	Description string     `json:"description"`

	// Amount is signed: positive = credit, negative = debit.
	Amount  decimal.Decimal  `json:"amount"`
	Balance *decimal.Decimal `json:"balance,omitempty"` // running balance if the statement printed one

	Type      TransactionType `json:"type"`
	Reference string          `json:"reference,omitempty"`

	// SortOrder preserves the original document ordering within the statement.
	SortOrder int `json:"sort_order"`
}

// BalanceVerification is the one-per-statement record of the verifier's
// result, replaced each time verification runs.
type BalanceVerification struct {
	ID          string `json:"id"`
	StatementID string `json:"statement_id"`

	CalculatedOpening decimal.Decimal `json:"calculated_opening"`
	CalculatedClosing decimal.Decimal `json:"calculated_closing"`
	ReportedOpening   decimal.Decimal `json:"reported_opening"`
	ReportedClosing   decimal.Decimal `json:"reported_closing"`

	IsBalanced  bool            `json:"is_balanced"`
	Discrepancy decimal.Decimal `json:"discrepancy"`
	Note        string          `json:"note,omitempty"`

	VerifiedAt time.Time `json:"verified_at"`
}
