// Package worker glues the job queue to the extraction pipeline and the
// ledger engine. It is shared by cmd/api (in-process consumer) and
// cmd/worker (standalone consumer).
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yagudaev/openfinance-sub000/internal/docstore"
	"github.com/yagudaev/openfinance-sub000/internal/jobs"
	"github.com/yagudaev/openfinance-sub000/internal/pipeline"
	"github.com/yagudaev/openfinance-sub000/internal/store"
)

// StatementProcessor runs the extract/verify loop for one statement.
type StatementProcessor interface {
	ProcessStatement(ctx context.Context, params pipeline.ProcessParams) (*pipeline.ProcessResult, error)
}

// LedgerRebuilder regenerates a user's daily net-worth ledger.
type LedgerRebuilder interface {
	RecalculateNetWorth(ctx context.Context, userID string) error
}

// Service handles queue jobs.
type Service struct {
	docs      docstore.DocumentStore
	text      pipeline.TextExtractor
	processor StatementProcessor
	rebuilder LedgerRebuilder
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewService(docs docstore.DocumentStore, text pipeline.TextExtractor, processor StatementProcessor, rebuilder LedgerRebuilder, publisher jobs.Publisher, log zerolog.Logger) *Service {
	return &Service{
		docs:      docs,
		text:      text,
		processor: processor,
		rebuilder: rebuilder,
		publisher: publisher,
		log:       log,
	}
}

// Handle dispatches a queue job by type. It is the jobs.JobHandler passed
// to the consumer.
func (s *Service) Handle(ctx context.Context, job jobs.Job) error {
	switch j := job.(type) {
	case *jobs.ProcessStatementJob:
		return s.processStatement(ctx, j)
	case *jobs.RebuildLedgerJob:
		return s.rebuildLedger(ctx, j)
	default:
		return fmt.Errorf("Handle: unexpected job type %T", job)
	}
}

func (s *Service) processStatement(ctx context.Context, job *jobs.ProcessStatementJob) error {
	s.log.Info().
		Str("job_id", job.JobID).
		Str("file_uri", job.FileURI).
		Msg("Processing statement job")

	data, err := s.docs.Fetch(ctx, job.FileURI)
	if err != nil {
		return fmt.Errorf("processStatement: fetch document: %w", err)
	}

	text, err := s.text.ExtractText(data)
	if err != nil {
		return fmt.Errorf("processStatement: extract text: %w", err)
	}

	res, err := s.processor.ProcessStatement(ctx, pipeline.ProcessParams{
		UserID:   job.UserID,
		Text:     text,
		FileURI:  job.FileURI,
		Filename: job.Filename,
		Timezone: job.Timezone,
	})
	if err != nil {
		// Document defects will not improve on a re-run. The statement row
		// already carries the error, so drop the job instead of retrying.
		if isPermanent(err) {
			s.log.Warn().
				Err(err).
				Str("job_id", job.JobID).
				Str("file_uri", job.FileURI).
				Msg("Statement rejected, not retrying")
			return nil
		}
		return fmt.Errorf("processStatement: %w", err)
	}

	s.log.Info().
		Str("job_id", job.JobID).
		Str("statement_id", res.Statement.ID).
		Int("transactions", res.TransactionCount).
		Bool("balanced", res.IsBalanced).
		Msg("Statement processed")

	// Every processed statement changes the ledger; queue the rebuild so
	// it serializes behind any other rebuild for the same user.
	rebuild := &jobs.RebuildLedgerJob{UserID: job.UserID}
	if err := s.publisher.PublishRebuildLedger(ctx, rebuild); err != nil {
		s.log.Error().Err(err).Str("user_id", job.UserID).Msg("Failed to enqueue ledger rebuild")
	}

	return nil
}

// isPermanent reports whether a processing error is a defect of the document
// itself rather than a transient failure worth retrying.
func isPermanent(err error) bool {
	return errors.Is(err, pipeline.ErrEmptyStatementText) ||
		errors.Is(err, pipeline.ErrUnrecognizedDocument) ||
		errors.Is(err, pipeline.ErrMissingPeriod) ||
		errors.Is(err, pipeline.ErrMissingBalances) ||
		errors.Is(err, pipeline.ErrDuplicatePeriod) ||
		errors.Is(err, store.ErrDuplicateStatement)
}

func (s *Service) rebuildLedger(ctx context.Context, job *jobs.RebuildLedgerJob) error {
	s.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", job.UserID).
		Msg("Rebuilding ledger")

	if err := s.rebuilder.RecalculateNetWorth(ctx, job.UserID); err != nil {
		return fmt.Errorf("rebuildLedger: %w", err)
	}
	return nil
}
