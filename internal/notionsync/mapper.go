package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/yagudaev/openfinance-sub000/internal/models"
)

// NetWorthToNotionProperties converts one daily net-worth row to Notion
// page properties. The title carries the day string and doubles as the
// idempotency key when reconciling existing pages.
func NetWorthToNotionProperties(row models.DailyNetWorth) notionapi.Properties {
	day := row.Date.In(time.UTC)
	notionDate := notionapi.Date(day)

	netWorth, _ := row.NetWorth.Float64()
	assets, _ := row.TotalAssets.Float64()
	liabilities, _ := row.TotalLiabilities.Float64()

	return notionapi.Properties{
		"Day": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: row.Date.String(),
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &notionDate,
			},
		},
		"Net Worth": notionapi.NumberProperty{
			Number: netWorth,
		},
		"Assets": notionapi.NumberProperty{
			Number: assets,
		},
		"Liabilities": notionapi.NumberProperty{
			Number: liabilities,
		},
	}
}

// extractDayKey reads the day string back out of a Notion page's title.
// Returns "" for pages the sync did not create.
func extractDayKey(page notionapi.Page) string {
	prop, ok := page.Properties["Day"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok {
		return ""
	}
	for _, rt := range title.Title {
		if rt.Text != nil && rt.Text.Content != "" {
			return rt.Text.Content
		}
		if rt.PlainText != "" {
			return rt.PlainText
		}
	}
	return ""
}
