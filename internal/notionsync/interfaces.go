package notionsync

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// NotionService defines the interface for interacting with the Notion API.
// This interface enables mocking and testing of Notion operations.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// DeletePage archives a Notion page.
	DeletePage(ctx context.Context, pageID string) error
}

// LedgerReader is the slice of the store the sync needs.
type LedgerReader interface {
	GetDailyNetWorth(ctx context.Context, userID string, since civil.Date) ([]models.DailyNetWorth, error)
}
