package pipeline

// ExtractedStatement is the structured candidate statement decoded from a
// model response. Pointer fields distinguish "absent" from zero; the
// orchestrator treats missing period or balance fields as hard failures.
type ExtractedStatement struct {
	Status       string `json:"status,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`

	StatementDate string  `json:"statement_date"`
	PeriodStart   *string `json:"period_start"`
	PeriodEnd     *string `json:"period_end"`

	OpeningBalance *float64 `json:"opening_balance"`
	ClosingBalance *float64 `json:"closing_balance"`

	TotalDeposits    *float64 `json:"total_deposits"`
	TotalWithdrawals *float64 `json:"total_withdrawals"`

	Transactions []ExtractedTransaction `json:"transactions"`

	// Raw is the verbatim model reply, replayed as the model turn when the
	// orchestrator builds corrective feedback.
	Raw string `json:"-"`
}

// ExtractedTransaction is one candidate ledger line from the model.
type ExtractedTransaction struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Balance     *float64 `json:"balance"`
	Type        string   `json:"type"`
	Reference   string   `json:"reference,omitempty"`
}
