package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yagudaev/openfinance-sub000/internal/api/middleware"
	"github.com/yagudaev/openfinance-sub000/internal/docstore"
	"github.com/yagudaev/openfinance-sub000/internal/jobs"
	"github.com/yagudaev/openfinance-sub000/internal/models"
	"github.com/yagudaev/openfinance-sub000/internal/store"
)

// maxUploadBytes caps statement uploads at 25 MB.
const maxUploadBytes = 25 << 20

// StatementStore is the slice of the SQLite store the statement handler needs.
type StatementStore interface {
	ListStatements(ctx context.Context, userID string) ([]*models.Statement, error)
	GetStatement(ctx context.Context, statementID string) (*models.Statement, error)
	UpdateStatement(ctx context.Context, st *models.Statement) error
	DeleteStatement(ctx context.Context, statementID string) error
	ListTransactionsByStatement(ctx context.Context, statementID string) ([]*models.Transaction, error)
	GetBalanceVerification(ctx context.Context, statementID string) (*models.BalanceVerification, error)
}

// AccountStore is the slice of the store the accounts handler needs.
type AccountStore interface {
	ListNetWorthAccounts(ctx context.Context, userID string) ([]*models.NetWorthAccount, error)
	GetNetWorthAccount(ctx context.Context, accountID string) (*models.NetWorthAccount, error)
	CreateManualAccount(ctx context.Context, a *models.NetWorthAccount) error
	UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error
	UnlinkAccount(ctx context.Context, accountID string) error
	DeleteAccount(ctx context.Context, accountID string) error
}

// LedgerEngine is the read/query surface of the net-worth engine.
type LedgerEngine interface {
	GetDailyNetWorth(ctx context.Context, userID string, since civil.Date) ([]models.DailyNetWorth, error)
	GetDayDrillDown(ctx context.Context, userID string, day civil.Date) (*models.DayDrillDown, error)
	GetNetWorthSummary(ctx context.Context, userID string) (*models.NetWorthSummary, error)
}

// userID resolves the acting user. Single-tenant deployments omit the
// header and share one implicit user.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "default"
}

// StatementsHandler handles statement endpoints.
type StatementsHandler struct {
	store     StatementStore
	docs      docstore.DocumentStore
	publisher jobs.Publisher

	defaultTimezone string
	log             zerolog.Logger
}

func NewStatementsHandler(store StatementStore, docs docstore.DocumentStore, publisher jobs.Publisher, defaultTimezone string, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		store:           store,
		docs:            docs,
		publisher:       publisher,
		defaultTimezone: defaultTimezone,
		log:             log,
	}
}

// Process handles POST /api/statements/process. The request body is the
// raw document (PDF or text); it is archived to storage and a processing
// job is queued.
func (h *StatementsHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "statement.pdf"
	}
	filename = filepath.Base(filename)

	timezone := r.URL.Query().Get("timezone")
	if timezone == "" {
		timezone = h.defaultTimezone
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read upload body")
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty request body")
		return
	}
	if len(data) > maxUploadBytes {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Document too large")
		return
	}

	uid := userID(r)
	uri, err := h.docs.Save(ctx, uid, filename, data)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}

	job := &jobs.ProcessStatementJob{
		UserID:   uid,
		FileURI:  uri,
		Filename: filename,
		Timezone: timezone,
	}
	if err := h.publisher.PublishProcessStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue processing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue processing job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("file_uri", uri).Msg("Statement processing enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.JobID,
		"file_uri": uri,
		"status":   string(job.Status),
	})
}

// List handles GET /api/statements
func (h *StatementsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statements, err := h.store.ListStatements(ctx, userID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list statements")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list statements")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

// Get handles GET /api/statements/{id}. The response includes the
// statement's transactions and its balance verification record.
func (h *StatementsHandler) Get(w http.ResponseWriter, r *http.Request, statementID string) {
	ctx := r.Context()

	st, err := h.store.GetStatement(ctx, statementID)
	if err != nil {
		if errors.Is(err, store.ErrStatementNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Statement not found")
			return
		}
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to get statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get statement")
		return
	}

	txs, err := h.store.ListTransactionsByStatement(ctx, statementID)
	if err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	verification, err := h.store.GetBalanceVerification(ctx, statementID)
	if err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to get verification")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get verification")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statement":    st,
		"transactions": txs,
		"verification": verification,
	})
}

// Delete handles DELETE /api/statements/{id}. Transactions and the
// verification record cascade; a ledger rebuild is queued afterwards.
func (h *StatementsHandler) Delete(w http.ResponseWriter, r *http.Request, statementID string) {
	ctx := r.Context()

	st, err := h.store.GetStatement(ctx, statementID)
	if err != nil {
		if errors.Is(err, store.ErrStatementNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Statement not found")
			return
		}
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to get statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete statement")
		return
	}

	if err := h.store.DeleteStatement(ctx, statementID); err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to delete statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete statement")
		return
	}

	if err := h.publisher.PublishRebuildLedger(ctx, &jobs.RebuildLedgerJob{UserID: st.UserID}); err != nil {
		h.log.Error().Err(err).Str("user_id", st.UserID).Msg("Failed to enqueue ledger rebuild")
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"statement_id": statementID,
		"status":       "deleted",
	})
}

// Verify handles POST /api/statements/{id}/verify. It marks an unbalanced
// statement as human-verified so it stops surfacing as a discrepancy.
func (h *StatementsHandler) Verify(w http.ResponseWriter, r *http.Request, statementID string) {
	ctx := r.Context()

	st, err := h.store.GetStatement(ctx, statementID)
	if err != nil {
		if errors.Is(err, store.ErrStatementNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Statement not found")
			return
		}
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to get statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to verify statement")
		return
	}

	st.VerificationStatus = models.VerificationHumanVerified
	if err := h.store.UpdateStatement(ctx, st); err != nil {
		h.log.Error().Err(err).Str("statement_id", statementID).Msg("Failed to update statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to verify statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"statement_id":        statementID,
		"verification_status": string(st.VerificationStatus),
	})
}

// AccountsHandler handles net-worth account endpoints.
type AccountsHandler struct {
	store     AccountStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewAccountsHandler(store AccountStore, publisher jobs.Publisher, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{store: store, publisher: publisher, log: log}
}

// List handles GET /api/accounts
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.store.ListNetWorthAccounts(ctx, userID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// Create handles POST /api/accounts. Only manual accounts are created this
// way; linked accounts appear automatically when statements are processed.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		AccountType string `json:"account_type"`
		Category    string `json:"category"`
		Balance     string `json:"balance"`
		Currency    string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	accountType := models.AccountType(req.AccountType)
	if accountType != models.AccountAsset && accountType != models.AccountLiability {
		middleware.WriteError(w, http.StatusBadRequest, "account_type must be asset or liability")
		return
	}

	balance := decimal.Zero
	if req.Balance != "" {
		var err error
		balance, err = decimal.NewFromString(req.Balance)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid balance")
			return
		}
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	account := &models.NetWorthAccount{
		UserID:         userID(r),
		Name:           req.Name,
		AccountType:    accountType,
		Category:       req.Category,
		CurrentBalance: balance,
		Currency:       req.Currency,
		IsManual:       true,
		Active:         true,
	}

	ctx := r.Context()
	if err := h.store.CreateManualAccount(ctx, account); err != nil {
		h.log.Error().Err(err).Msg("Failed to create account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	h.enqueueRebuild(ctx, account.UserID)

	middleware.WriteJSON(w, http.StatusCreated, account)
}

// UpdateBalance handles PUT /api/accounts/{id}/balance for manual accounts.
func (h *AccountsHandler) UpdateBalance(w http.ResponseWriter, r *http.Request, accountID string) {
	var req struct {
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid balance")
		return
	}

	ctx := r.Context()
	account, err := h.store.GetNetWorthAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to get account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update balance")
		return
	}
	if !account.IsManual {
		middleware.WriteError(w, http.StatusConflict, "Linked account balances are derived from statements")
		return
	}

	if err := h.store.UpdateAccountBalance(ctx, accountID, balance); err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to update balance")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update balance")
		return
	}

	h.enqueueRebuild(ctx, account.UserID)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"balance":    balance.String(),
	})
}

// Unlink handles POST /api/accounts/{id}/unlink. The account keeps its
// last derived balance but becomes manual.
func (h *AccountsHandler) Unlink(w http.ResponseWriter, r *http.Request, accountID string) {
	ctx := r.Context()

	account, err := h.store.GetNetWorthAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to get account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to unlink account")
		return
	}

	if err := h.store.UnlinkAccount(ctx, accountID); err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to unlink account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to unlink account")
		return
	}

	h.enqueueRebuild(ctx, account.UserID)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"status":     "unlinked",
	})
}

// Delete handles DELETE /api/accounts/{id}
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request, accountID string) {
	ctx := r.Context()

	account, err := h.store.GetNetWorthAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to get account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	if err := h.store.DeleteAccount(ctx, accountID); err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to delete account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	h.enqueueRebuild(ctx, account.UserID)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"status":     "deleted",
	})
}

func (h *AccountsHandler) enqueueRebuild(ctx context.Context, uid string) {
	if err := h.publisher.PublishRebuildLedger(ctx, &jobs.RebuildLedgerJob{UserID: uid}); err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("Failed to enqueue ledger rebuild")
	}
}

// NetWorthHandler handles net-worth query endpoints.
type NetWorthHandler struct {
	engine    LedgerEngine
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewNetWorthHandler(engine LedgerEngine, publisher jobs.Publisher, log zerolog.Logger) *NetWorthHandler {
	return &NetWorthHandler{engine: engine, publisher: publisher, log: log}
}

// Daily handles GET /api/networth/daily?since=YYYY-MM-DD
func (h *NetWorthHandler) Daily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var since civil.Date
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := civil.ParseDate(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid since date, expected YYYY-MM-DD")
			return
		}
		since = parsed
	}

	days, err := h.engine.GetDailyNetWorth(ctx, userID(r), since)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get daily net worth")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get daily net worth")
		return
	}

	if days == nil {
		days = []models.DailyNetWorth{}
	}
	middleware.WriteJSON(w, http.StatusOK, days)
}

// Day handles GET /api/networth/day/{date}
func (h *NetWorthHandler) Day(w http.ResponseWriter, r *http.Request, rawDate string) {
	day, err := civil.ParseDate(rawDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	drillDown, err := h.engine.GetDayDrillDown(r.Context(), userID(r), day)
	if err != nil {
		h.log.Error().Err(err).Str("date", rawDate).Msg("Failed to get day drill-down")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get day breakdown")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, drillDown)
}

// Summary handles GET /api/networth/summary
func (h *NetWorthHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.GetNetWorthSummary(r.Context(), userID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get net worth summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get net worth summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// Recalculate handles POST /api/networth/recalculate
func (h *NetWorthHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	job := &jobs.RebuildLedgerJob{UserID: userID(r)}
	if err := h.publisher.PublishRebuildLedger(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue ledger rebuild")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue rebuild")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler handles job-status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// Get handles GET /api/jobs/{id}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Type:   jobs.JobType(query.Get("type")),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
