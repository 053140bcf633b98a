package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// Sentinel errors surfaced to callers. ErrDuplicateStatement is raised when
// a newly created statement collides with an already-processed statement for
// the same (user, account number, period) so the API can report "already
// imported" instead of a generic failure.
var (
	ErrDuplicateStatement = errors.New("statement already imported for this account and period")
	ErrStatementNotFound  = errors.New("statement not found")
	ErrAccountNotFound    = errors.New("account not found")
)

// Service is the SQLite-backed persistence layer. All monetary values are
// stored as decimal strings and all dates as YYYY-MM-DD text.
type Service struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewService(ctx context.Context, cfg models.DatabaseConfig, log zerolog.Logger) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Service{db: db, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	log.Info().Str("path", cfg.Path).Msg("Database service initialized")
	return s, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close database connection")
	}
}

func (s *Service) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS statements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		bank_account_id TEXT NOT NULL DEFAULT '',
		bank_name TEXT NOT NULL DEFAULT '',
		account_number TEXT NOT NULL DEFAULT '',
		statement_date TEXT NOT NULL DEFAULT '',
		period_start TEXT NOT NULL DEFAULT '',
		period_end TEXT NOT NULL DEFAULT '',
		opening_balance TEXT NOT NULL DEFAULT '0',
		closing_balance TEXT NOT NULL DEFAULT '0',
		total_deposits TEXT NOT NULL DEFAULT '0',
		total_withdrawals TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT NOT NULL DEFAULT '',
		verification_status TEXT NOT NULL DEFAULT '',
		discrepancy_amount TEXT NOT NULL DEFAULT '0',
		file_uri TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_statements_user ON statements(user_id);
	CREATE INDEX IF NOT EXISTS idx_statements_bank_account ON statements(bank_account_id);
	CREATE INDEX IF NOT EXISTS idx_statements_period ON statements(user_id, account_number, period_start, period_end);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		statement_id TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		balance TEXT,
		type TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_statement ON transactions(statement_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);

	CREATE TABLE IF NOT EXISTS balance_verifications (
		id TEXT PRIMARY KEY,
		statement_id TEXT NOT NULL UNIQUE REFERENCES statements(id) ON DELETE CASCADE,
		calculated_opening TEXT NOT NULL,
		calculated_closing TEXT NOT NULL,
		reported_opening TEXT NOT NULL,
		reported_closing TEXT NOT NULL,
		is_balanced INTEGER NOT NULL,
		discrepancy TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		verified_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bank_accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		account_number TEXT NOT NULL,
		bank_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, account_number)
	);

	CREATE TABLE IF NOT EXISTS net_worth_accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		current_balance TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'USD',
		is_manual INTEGER NOT NULL DEFAULT 0,
		bank_account_id TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nw_accounts_user ON net_worth_accounts(user_id);

	CREATE TABLE IF NOT EXISTS daily_account_balances (
		user_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		date TEXT NOT NULL,
		balance TEXT NOT NULL,
		PRIMARY KEY (account_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_balances_user_date ON daily_account_balances(user_id, date);

	CREATE TABLE IF NOT EXISTS daily_net_worth (
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		total_assets TEXT NOT NULL,
		total_liabilities TEXT NOT NULL,
		net_worth TEXT NOT NULL,
		PRIMARY KEY (user_id, date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
