package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yagudaev/openfinance-sub000/internal/jobs"
	"github.com/yagudaev/openfinance-sub000/internal/models"
	"github.com/yagudaev/openfinance-sub000/internal/pipeline"
	"github.com/yagudaev/openfinance-sub000/internal/store"
)

type mockDocs struct {
	data map[string][]byte
}

func (m *mockDocs) Save(ctx context.Context, userID, filename string, data []byte) (string, error) {
	return "gs://bucket/" + filename, nil
}

func (m *mockDocs) Fetch(ctx context.Context, uri string) ([]byte, error) {
	data, ok := m.data[uri]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type mockText struct{}

func (m *mockText) ExtractText(data []byte) (string, error) {
	return string(data), nil
}

type mockProcessor struct {
	params pipeline.ProcessParams
	err    error
}

func (m *mockProcessor) ProcessStatement(ctx context.Context, params pipeline.ProcessParams) (*pipeline.ProcessResult, error) {
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	return &pipeline.ProcessResult{
		Statement:        &models.Statement{ID: "stmt-1", UserID: params.UserID},
		TransactionCount: 3,
		IsBalanced:       true,
	}, nil
}

type mockRebuilder struct {
	users []string
	err   error
}

func (m *mockRebuilder) RecalculateNetWorth(ctx context.Context, userID string) error {
	m.users = append(m.users, userID)
	return m.err
}

type mockPublisher struct {
	rebuilds []*jobs.RebuildLedgerJob
}

func (m *mockPublisher) PublishProcessStatement(ctx context.Context, job *jobs.ProcessStatementJob) error {
	return nil
}

func (m *mockPublisher) PublishRebuildLedger(ctx context.Context, job *jobs.RebuildLedgerJob) error {
	m.rebuilds = append(m.rebuilds, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func TestHandleProcessStatementJob(t *testing.T) {
	docs := &mockDocs{data: map[string][]byte{"gs://bucket/march.pdf": []byte("STATEMENT TEXT")}}
	processor := &mockProcessor{}
	publisher := &mockPublisher{}
	s := NewService(docs, &mockText{}, processor, &mockRebuilder{}, publisher, zerolog.Nop())

	job := &jobs.ProcessStatementJob{
		UserID:   "user-1",
		FileURI:  "gs://bucket/march.pdf",
		Filename: "march.pdf",
		Timezone: "America/New_York",
	}
	require.NoError(t, s.Handle(context.Background(), job))

	assert.Equal(t, "STATEMENT TEXT", processor.params.Text)
	assert.Equal(t, "user-1", processor.params.UserID)
	assert.Equal(t, "gs://bucket/march.pdf", processor.params.FileURI)

	require.Len(t, publisher.rebuilds, 1)
	assert.Equal(t, "user-1", publisher.rebuilds[0].UserID)
}

func TestHandleProcessStatementJobFetchFails(t *testing.T) {
	s := NewService(&mockDocs{}, &mockText{}, &mockProcessor{}, &mockRebuilder{}, &mockPublisher{}, zerolog.Nop())

	job := &jobs.ProcessStatementJob{UserID: "user-1", FileURI: "gs://bucket/missing.pdf"}
	err := s.Handle(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch document")
}

func TestHandleProcessStatementJobDocumentDefectNotRetried(t *testing.T) {
	// Bad documents stay bad. The job completes without error so the queue
	// does not re-run it, and no rebuild is queued.
	for _, cause := range []error{
		pipeline.ErrEmptyStatementText,
		pipeline.ErrUnrecognizedDocument,
		pipeline.ErrMissingPeriod,
		pipeline.ErrMissingBalances,
		pipeline.ErrDuplicatePeriod,
		store.ErrDuplicateStatement,
	} {
		docs := &mockDocs{data: map[string][]byte{"gs://bucket/f.pdf": []byte("text")}}
		processor := &mockProcessor{err: fmt.Errorf("ProcessStatement: %w", cause)}
		publisher := &mockPublisher{}
		s := NewService(docs, &mockText{}, processor, &mockRebuilder{}, publisher, zerolog.Nop())

		job := &jobs.ProcessStatementJob{UserID: "user-1", FileURI: "gs://bucket/f.pdf"}
		assert.NoError(t, s.Handle(context.Background(), job), cause.Error())
		assert.Empty(t, publisher.rebuilds, cause.Error())
	}
}

func TestHandleProcessStatementJobTransientFailureRetried(t *testing.T) {
	docs := &mockDocs{data: map[string][]byte{"gs://bucket/f.pdf": []byte("text")}}
	processor := &mockProcessor{err: errors.New("extraction failed: model timeout")}
	publisher := &mockPublisher{}
	s := NewService(docs, &mockText{}, processor, &mockRebuilder{}, publisher, zerolog.Nop())

	job := &jobs.ProcessStatementJob{UserID: "user-1", FileURI: "gs://bucket/f.pdf"}
	err := s.Handle(context.Background(), job)
	require.Error(t, err)
	assert.Empty(t, publisher.rebuilds)
}

func TestHandleRebuildLedgerJob(t *testing.T) {
	rebuilder := &mockRebuilder{}
	s := NewService(&mockDocs{}, &mockText{}, &mockProcessor{}, rebuilder, &mockPublisher{}, zerolog.Nop())

	require.NoError(t, s.Handle(context.Background(), &jobs.RebuildLedgerJob{UserID: "user-7"}))
	assert.Equal(t, []string{"user-7"}, rebuilder.users)
}

func TestHandleUnknownJobType(t *testing.T) {
	s := NewService(&mockDocs{}, &mockText{}, &mockProcessor{}, &mockRebuilder{}, &mockPublisher{}, zerolog.Nop())

	err := s.Handle(context.Background(), nil)
	assert.Error(t, err)
}
