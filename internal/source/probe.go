package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"
)

// probeFeed fetches an RSS or podcast feed once in the background to catch
// dead feeds early and to borrow the feed title as a description when the
// user left one out. Failures land in last_error; they never block the
// create request.
func (h *Handler) probeFeed(sourceID, feedURL string, fillDescription bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		parser := gofeed.NewParser()
		parser.Client = h.httpClient

		parsed, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			_, dbErr := h.db.Exec(ctx,
				`UPDATE content_sources SET last_scraped_at = now(), last_error = $1,
				        scrape_error_count = scrape_error_count + 1, updated_at = now()
				 WHERE id = $2`,
				err.Error(), sourceID)
			if dbErr != nil {
				slog.Error("failed to record feed probe error", "source_id", sourceID, "error", dbErr)
			}
			return
		}

		description := ""
		if fillDescription && parsed.Title != "" {
			description = parsed.Title
		}
		_, err = h.db.Exec(ctx,
			`UPDATE content_sources SET last_scraped_at = now(), last_successful_scrape_at = now(),
			        last_error = NULL, description = COALESCE(NULLIF($1, ''), description), updated_at = now()
			 WHERE id = $2`,
			description, sourceID)
		if err != nil {
			slog.Error("failed to record feed probe result", "source_id", sourceID, "error", err)
		}
	}()
}
