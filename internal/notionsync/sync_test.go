package notionsync

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

type mockNotion struct {
	pages []notionapi.Page

	created  []notionapi.Properties
	updated  map[string]notionapi.Properties
	archived []string
}

func (m *mockNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.created = append(m.created, properties)
	return &notionapi.Page{}, nil
}

func (m *mockNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.updated == nil {
		m.updated = make(map[string]notionapi.Properties)
	}
	m.updated[pageID] = properties
	return &notionapi.Page{}, nil
}

func (m *mockNotion) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{Results: m.pages, HasMore: false}, nil
}

func (m *mockNotion) DeletePage(ctx context.Context, pageID string) error {
	m.archived = append(m.archived, pageID)
	return nil
}

type mockLedger struct {
	rows []models.DailyNetWorth
}

func (m *mockLedger) GetDailyNetWorth(ctx context.Context, userID string, since civil.Date) ([]models.DailyNetWorth, error) {
	return m.rows, nil
}

func dayPage(id, day string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Day": &notionapi.TitleProperty{
				Title: []notionapi.RichText{
					{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: day}, PlainText: day},
				},
			},
		},
	}
}

func row(day civil.Date, netWorth string) models.DailyNetWorth {
	return models.DailyNetWorth{
		Date:     day,
		NetWorth: decimal.RequireFromString(netWorth),
	}
}

func TestSyncNetWorth(t *testing.T) {
	d1 := civil.Date{Year: 2024, Month: time.March, Day: 1}
	d2 := civil.Date{Year: 2024, Month: time.March, Day: 2}

	ledger := &mockLedger{rows: []models.DailyNetWorth{row(d1, "1000"), row(d2, "1100")}}
	notion := &mockNotion{pages: []notionapi.Page{
		dayPage("page-1", "2024-03-01"), // existing, gets updated
		dayPage("page-stale", "2024-02-01"),
	}}

	err := SyncNetWorth(context.Background(), ledger, notion, "db-1", "user-1", civil.Date{}, false)
	require.NoError(t, err)

	assert.Len(t, notion.created, 1, "only the missing day is created")
	require.Contains(t, notion.updated, "page-1")
	assert.Equal(t, []string{"page-stale"}, notion.archived)

	nw, ok := notion.updated["page-1"]["Net Worth"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.Equal(t, float64(1000), nw.Number)
}

func TestSyncNetWorthDryRun(t *testing.T) {
	d1 := civil.Date{Year: 2024, Month: time.March, Day: 1}

	ledger := &mockLedger{rows: []models.DailyNetWorth{row(d1, "1000")}}
	notion := &mockNotion{pages: []notionapi.Page{dayPage("page-stale", "2024-02-01")}}

	err := SyncNetWorth(context.Background(), ledger, notion, "db-1", "user-1", civil.Date{}, true)
	require.NoError(t, err)

	assert.Empty(t, notion.created)
	assert.Empty(t, notion.updated)
	assert.Empty(t, notion.archived)
}

func TestExtractDayKey(t *testing.T) {
	assert.Equal(t, "2024-03-01", extractDayKey(dayPage("p", "2024-03-01")))
	assert.Equal(t, "", extractDayKey(notionapi.Page{Properties: notionapi.Properties{}}))
}
