package source

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// triggerScrape asks the external scraper to pick up a freshly registered
// source. The scraper runs its own queue, so this is best effort: a dead
// scraper must never fail source creation.
func (h *Handler) triggerScrape(sourceURL string) {
	if h.scraperURL == "" {
		return
	}
	target := h.scraperURL + "/latest?url=" + url.QueryEscape(sourceURL)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			slog.Error("failed to build scraper request", "url", target, "error", err)
			return
		}
		resp, err := h.httpClient.Do(req)
		if err != nil {
			slog.Error("failed to notify scraper", "source_url", sourceURL, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			slog.Error("scraper rejected trigger", "source_url", sourceURL, "status", resp.StatusCode)
		}
	}()
}
