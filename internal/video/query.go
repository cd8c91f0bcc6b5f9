package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/slide"
)

type feedRow struct {
	ID         string
	VideoName  string
	Title      string
	Desc       string
	Category   string
	SourceName string
	Thumbnail  string
	Slides     json.RawMessage
	CreatedAt  time.Time
}

// FeedVideos returns the published feed projection, newest first. When
// repeat > 1 the page is tiled that many times with re-suffixed ids to
// simulate an infinite feed; repeated instances never count views.
func (h *Handler) FeedVideos(ctx context.Context, category string, limit, repeat int) ([]feed.Video, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT id, video_name, title, COALESCE(description, ''), category,
	                 COALESCE(source_name, ''), COALESCE(thumbnail, ''), slides, created_at
	          FROM videos WHERE is_published = true`
	args := []any{}
	if category != "" && category != "all" {
		args = append(args, category)
		query += " AND category = $1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY published_at DESC NULLS LAST, created_at DESC LIMIT $%d", len(args))

	rows, err := h.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var videos []feed.Video
	for rows.Next() {
		var row feedRow
		if err := rows.Scan(&row.ID, &row.VideoName, &row.Title, &row.Desc, &row.Category,
			&row.SourceName, &row.Thumbnail, &row.Slides, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feed row: %w", err)
		}
		videos = append(videos, h.projectVideo(row, now))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read feed rows: %w", err)
	}

	return tileVideos(videos, repeat), nil
}

// projectVideo is the one-way transform from a stored record to the
// feed-facing shape.
func (h *Handler) projectVideo(row feedRow, now time.Time) feed.Video {
	category := row.Category
	if category == "all" {
		category = "tech"
	}
	sourceName := row.SourceName
	if sourceName == "" {
		sourceName = "Unknown Source"
	}

	slides, err := slide.DecodeDeck(row.Slides)
	if err != nil {
		// A deck that cannot even parse as JSON renders as no slides
		// rather than breaking the whole feed.
		slides = nil
	}

	var thumbnail string
	if row.Thumbnail != "" {
		thumbnail = h.storage.PublicURL(row.Thumbnail)
	}

	return feed.Video{
		ID:          row.ID,
		SourceURL:   h.storage.PublicURL(row.VideoName),
		Title:       row.Title,
		Description: row.Desc,
		Category:    category,
		SourceName:  sourceName,
		Timestamp:   formatRelativeTime(row.CreatedAt, now),
		Thumbnail:   thumbnail,
		Slides:      slides,
	}
}

// tileVideos repeats the page with re-suffixed ids. The first pass
// keeps original ids so views still count there.
func tileVideos(videos []feed.Video, repeat int) []feed.Video {
	if repeat <= 1 || len(videos) == 0 {
		return videos
	}
	tiled := make([]feed.Video, 0, len(videos)*repeat)
	tiled = append(tiled, videos...)
	for i := 1; i < repeat; i++ {
		for _, v := range videos {
			dup := v
			dup.ID = fmt.Sprintf("%s%s%d", v.ID, feed.RepeatMarker, i)
			tiled = append(tiled, dup)
		}
	}
	return tiled
}

// Feed serves GET /api/feed: the published projection as JSON.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	if category != "" && !categories[category] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown category")
		return
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	repeat := 1
	if v := q.Get("repeat"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			httputil.WriteError(w, http.StatusBadRequest, "repeat must be between 1 and 10")
			return
		}
		repeat = n
	}

	videos, err := h.FeedVideos(r.Context(), category, limit, repeat)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}
	if videos == nil {
		videos = []feed.Video{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"videos": videos})
}
