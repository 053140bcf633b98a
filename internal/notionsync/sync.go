package notionsync

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	"github.com/yagudaev/openfinance-sub000/internal/logger"
)

// SyncNetWorth mirrors a user's daily net-worth series into a Notion
// database. Pages are keyed by day title: existing days are updated in
// place, missing days are created, and pages for days no longer in the
// ledger are archived. With dryRun set, no writes reach Notion.
func SyncNetWorth(ctx context.Context, ledger LedgerReader, notionClient NotionService, notionDBID, userID string, since civil.Date, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", userID).
		Str("since", since.String()).
		Bool("dry_run", dryRun).
		Msg("Starting net worth sync to Notion")

	rows, err := ledger.GetDailyNetWorth(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("SyncNetWorth: query daily net worth: %w", err)
	}

	validDays := make(map[string]bool, len(rows))
	for _, row := range rows {
		validDays[row.Date.String()] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("SyncNetWorth: query Notion pages: %w", err)
	}

	pageByDay := make(map[string]string, len(pages))
	var deleted int
	for _, page := range pages {
		day := extractDayKey(page)

		// Archive pages without a day title (from an old schema) or for
		// days dropped from the ledger.
		if day == "" || !validDays[day] {
			if dryRun {
				log.Info().
					Str("day", day).
					Str("page_id", string(page.ID)).
					Msg("[DRY RUN] Would archive stale Notion page")
				deleted++
				continue
			}
			if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
				log.Warn().
					Err(err).
					Str("day", day).
					Str("page_id", string(page.ID)).
					Msg("Failed to archive stale Notion page")
				continue
			}
			deleted++
			continue
		}
		pageByDay[day] = string(page.ID)
	}

	var created, updated int
	for _, row := range rows {
		day := row.Date.String()
		props := NetWorthToNotionProperties(row)

		if pageID, exists := pageByDay[day]; exists {
			if dryRun {
				log.Info().Str("day", day).Msg("[DRY RUN] Would update Notion page")
				updated++
				continue
			}
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("day", day).Msg("Failed to update Notion page")
				continue
			}
			updated++
			continue
		}

		if dryRun {
			log.Info().Str("day", day).Msg("[DRY RUN] Would create Notion page")
			created++
			continue
		}
		if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
			log.Warn().Err(err).Str("day", day).Msg("Failed to create Notion page")
			continue
		}
		created++
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("archived", deleted).
		Msg("Net worth sync to Notion finished")
	return nil
}

// queryAllNotionPages pages through the whole database.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
