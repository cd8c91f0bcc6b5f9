package video

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/slide"
	"github.com/reelfeed/reelfeed/internal/validate"
)

type createRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	SourceID    string          `json:"sourceId,omitempty"`
	SourceName  string          `json:"sourceName,omitempty"`
	SourceURL   string          `json:"sourceUrl,omitempty"`
	Duration    int             `json:"duration,omitempty"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	Slides      json.RawMessage `json:"slides,omitempty"`
	ContentType string          `json:"contentType,omitempty"`
	FileSize    int64           `json:"fileSize"`
	IsPublished bool            `json:"isPublished,omitempty"`
}

type createResponse struct {
	ID        string `json:"id"`
	VideoName string `json:"videoName"`
	UploadURL string `json:"uploadUrl"`
}

type updateRequest struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Thumbnail   *string          `json:"thumbnail,omitempty"`
	Slides      *json.RawMessage `json:"slides,omitempty"`
	IsPublished *bool            `json:"isPublished,omitempty"`
}

type videoRecord struct {
	ID          string          `json:"id"`
	VideoName   string          `json:"videoName"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	Category    string          `json:"category"`
	SourceID    string          `json:"sourceId,omitempty"`
	SourceName  string          `json:"sourceName,omitempty"`
	SourceURL   string          `json:"sourceUrl,omitempty"`
	Duration    int             `json:"duration,omitempty"`
	ViewCount   int             `json:"viewCount"`
	Slides      json.RawMessage `json:"slides,omitempty"`
	IsPublished bool            `json:"isPublished"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		httputil.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	if msg := validate.Title(req.Title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Description(req.Description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	category := req.Category
	if category == "" {
		category = "all"
	}
	if !categories[category] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown category")
		return
	}
	if req.FileSize <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "fileSize must be positive")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}
	if contentType != "video/mp4" && contentType != "video/webm" {
		httputil.WriteError(w, http.StatusBadRequest, "only video/mp4 and video/webm are supported")
		return
	}
	if err := validateSlidesJSON(req.Slides); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	videoName, err := generateVideoName(userID, contentType)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate video name")
		return
	}

	var publishedAt *time.Time
	if req.IsPublished {
		now := time.Now().UTC()
		publishedAt = &now
	}

	var videoID string
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO videos (user_id, video_name, title, description, thumbnail, category,
		                     source_id, source_name, source_url, duration, slides, is_published, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, $8, $9, $10, $11, $12, $13) RETURNING id`,
		userID, videoName, req.Title, req.Description, req.Thumbnail, category,
		req.SourceID, req.SourceName, req.SourceURL, req.Duration, nullableJSON(req.Slides), req.IsPublished, publishedAt,
	).Scan(&videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create video")
		return
	}

	uploadURL, err := h.storage.GenerateUploadURL(r.Context(), videoName, contentType, req.FileSize, 30*time.Minute)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		ID:        videoID,
		VideoName: videoName,
		UploadURL: uploadURL,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	rec, err := h.fetchOwned(r.Context(), userID, videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()

	query := `SELECT id, video_name, title, COALESCE(description, ''), COALESCE(thumbnail, ''), category,
	                 COALESCE(source_id::text, ''), COALESCE(source_name, ''), COALESCE(source_url, ''),
	                 COALESCE(duration, 0), view_count, slides, is_published, published_at, created_at, updated_at
	          FROM videos WHERE user_id = $1`
	args := []any{userID}

	if cat := q.Get("category"); cat != "" {
		if !categories[cat] {
			httputil.WriteError(w, http.StatusBadRequest, "unknown category")
			return
		}
		args = append(args, cat)
		query += " AND category = $" + strconv.Itoa(len(args))
	}
	if pub := q.Get("published"); pub != "" {
		val, err := strconv.ParseBool(pub)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "published must be true or false")
			return
		}
		args = append(args, val)
		query += " AND is_published = $" + strconv.Itoa(len(args))
	}
	if sourceID := q.Get("sourceId"); sourceID != "" {
		args = append(args, sourceID)
		query += " AND source_id = $" + strconv.Itoa(len(args))
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	args = append(args, limit, offset)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := h.db.Query(r.Context(), query, args...)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	defer rows.Close()

	videos := []videoRecord{}
	for rows.Next() {
		var rec videoRecord
		if err := rows.Scan(&rec.ID, &rec.VideoName, &rec.Title, &rec.Description, &rec.Thumbnail,
			&rec.Category, &rec.SourceID, &rec.SourceName, &rec.SourceURL, &rec.Duration,
			&rec.ViewCount, &rec.Slides, &rec.IsPublished, &rec.PublishedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to read videos")
			return
		}
		videos = append(videos, rec)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == nil && req.Description == nil && req.Category == nil &&
		req.Thumbnail == nil && req.Slides == nil && req.IsPublished == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			httputil.WriteError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		if msg := validate.Title(*req.Title); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if req.Description != nil {
		if msg := validate.Description(*req.Description); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if req.Category != nil && !categories[*req.Category] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown category")
		return
	}
	if req.Slides != nil {
		if err := validateSlidesJSON(*req.Slides); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rec, err := h.fetchOwned(r.Context(), userID, videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	if req.Title != nil {
		rec.Title = *req.Title
	}
	if req.Description != nil {
		rec.Description = *req.Description
	}
	if req.Category != nil {
		rec.Category = *req.Category
	}
	if req.Thumbnail != nil {
		rec.Thumbnail = *req.Thumbnail
	}
	if req.Slides != nil {
		rec.Slides = *req.Slides
	}
	if req.IsPublished != nil {
		// First publish stamps published_at; unpublishing clears it so a
		// later re-publish reads as fresh in the feed.
		if *req.IsPublished && !rec.IsPublished {
			now := time.Now().UTC()
			rec.PublishedAt = &now
		}
		if !*req.IsPublished {
			rec.PublishedAt = nil
		}
		rec.IsPublished = *req.IsPublished
	}

	tag, err := h.db.Exec(r.Context(),
		`UPDATE videos SET title = $1, description = $2, category = $3, thumbnail = $4,
		        slides = $5, is_published = $6, published_at = $7, updated_at = now()
		 WHERE id = $8 AND user_id = $9`,
		rec.Title, rec.Description, rec.Category, rec.Thumbnail,
		nullableJSON(rec.Slides), rec.IsPublished, rec.PublishedAt, videoID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var isPublished bool
	err := h.db.QueryRow(r.Context(),
		`UPDATE videos
		 SET is_published = NOT is_published,
		     published_at = CASE WHEN is_published THEN NULL ELSE COALESCE(published_at, now()) END,
		     updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING is_published`,
		videoID, userID,
	).Scan(&isPublished)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": videoID, "isPublished": isPublished})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var videoName string
	err := h.db.QueryRow(r.Context(),
		`DELETE FROM videos WHERE id = $1 AND user_id = $2 RETURNING video_name`,
		videoID, userID,
	).Scan(&videoName)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := deleteWithRetry(ctx, h.storage, videoName, 3); err != nil {
			slog.Error("video: all media delete retries failed", "key", videoName, "error", err)
		}
	}()

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fetchOwned(ctx context.Context, userID, videoID string) (videoRecord, error) {
	var rec videoRecord
	err := h.db.QueryRow(ctx,
		`SELECT id, video_name, title, COALESCE(description, ''), COALESCE(thumbnail, ''), category,
		        COALESCE(source_id::text, ''), COALESCE(source_name, ''), COALESCE(source_url, ''),
		        COALESCE(duration, 0), view_count, slides, is_published, published_at, created_at, updated_at
		 FROM videos WHERE id = $1 AND user_id = $2`,
		videoID, userID,
	).Scan(&rec.ID, &rec.VideoName, &rec.Title, &rec.Description, &rec.Thumbnail,
		&rec.Category, &rec.SourceID, &rec.SourceName, &rec.SourceURL, &rec.Duration,
		&rec.ViewCount, &rec.Slides, &rec.IsPublished, &rec.PublishedAt, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func validateSlidesJSON(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	deck, err := slide.DecodeDeck(raw)
	if err != nil {
		return err
	}
	return slide.ValidateDeck(deck)
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func generateVideoName(userID, contentType string) (string, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	ext := ".mp4"
	if contentType == "video/webm" {
		ext = ".webm"
	}
	return "videos/" + userID + "/" + hex.EncodeToString(b[:]) + ext, nil
}

func deleteWithRetry(ctx context.Context, storage ObjectStorage, key string, maxAttempts int) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		lastErr = storage.DeleteObject(ctx, key)
		if lastErr == nil {
			return nil
		}
		slog.Error("storage: delete attempt failed", "attempt", attempt+1, "max_attempts", maxAttempts, "key", key, "error", lastErr)
	}
	return lastErr
}
