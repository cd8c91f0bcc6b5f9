package video

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

// RecordView serves POST /api/feed/{id}/view: the fire-and-forget view
// increment behind the feed's at-most-once counter. Repeat-suffixed ids
// are silently accepted and dropped so tiled feed instances can post
// without special-casing. The visitor row is enriched off-request;
// failures there are logged, never surfaced.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if videoID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "video id required")
		return
	}
	if strings.Contains(videoID, feed.RepeatMarker) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`UPDATE videos SET view_count = view_count + 1 WHERE id = $1 AND is_published = true`,
		videoID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to record view")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	ip := clientIP(r)
	ua := r.UserAgent()
	referrer := r.Referer()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.insertViewRow(ctx, videoID, ip, ua, referrer)
	}()

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) insertViewRow(ctx context.Context, videoID, ip, ua, referrer string) {
	loc := h.geo.Lookup(ip)
	_, err := h.db.Exec(ctx,
		`INSERT INTO video_views (video_id, viewer_hash, referrer, browser, device, country, city)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		videoID, viewerHash(ip, ua), categorizeReferrer(referrer),
		parseBrowser(ua), parseDevice(ua), loc.Country, loc.City,
	)
	if err != nil {
		slog.Error("failed to record view details", "video_id", videoID, "error", err)
	}
}

// CountView lets the feed session engine record views through the same
// path as the HTTP endpoint.
func (h *Handler) CountView(ctx context.Context, videoID string) error {
	if strings.Contains(videoID, feed.RepeatMarker) {
		return nil
	}
	_, err := h.db.Exec(ctx,
		`UPDATE videos SET view_count = view_count + 1 WHERE id = $1 AND is_published = true`,
		videoID,
	)
	return err
}
