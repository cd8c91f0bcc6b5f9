// Package source manages the content sources users register for
// scraping: CRUD over the sources table, the fire-and-forget scrape
// trigger toward the external scraper, and a best-effort RSS probe.
package source

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
)

var sourceTypes = map[string]bool{
	"url":              true,
	"rss_feed":         true,
	"youtube_channel":  true,
	"youtube_playlist": true,
	"twitter_user":     true,
	"reddit_subreddit": true,
	"podcast_rss":      true,
	"api_endpoint":     true,
	"github_repo":      true,
}

var sourceCategories = map[string]bool{
	"all":           true,
	"tech":          true,
	"politics":      true,
	"science":       true,
	"business":      true,
	"sports":        true,
	"entertainment": true,
	"health":        true,
}

var scrapeFrequencies = map[string]bool{
	"realtime": true,
	"hourly":   true,
	"daily":    true,
	"weekly":   true,
}

type Handler struct {
	db         database.DBTX
	scraperURL string
	httpClient *http.Client
}

func NewHandler(db database.DBTX, scraperURL string) *Handler {
	return &Handler{
		db:         db,
		scraperURL: scraperURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type createRequest struct {
	SourceType      string `json:"sourceType"`
	SourceURL       string `json:"sourceUrl"`
	DisplayName     string `json:"displayName"`
	Description     string `json:"description,omitempty"`
	Category        string `json:"category,omitempty"`
	ScrapeFrequency string `json:"scrapeFrequency,omitempty"`
}

type updateRequest struct {
	DisplayName     *string `json:"displayName,omitempty"`
	Description     *string `json:"description,omitempty"`
	Category        *string `json:"category,omitempty"`
	ScrapeFrequency *string `json:"scrapeFrequency,omitempty"`
	IsActive        *bool   `json:"isActive,omitempty"`
}

type sourceRecord struct {
	ID                     string     `json:"id"`
	SourceType             string     `json:"sourceType"`
	SourceURL              string     `json:"sourceUrl"`
	DisplayName            string     `json:"displayName"`
	Description            string     `json:"description,omitempty"`
	Category               string     `json:"category"`
	IsActive               bool       `json:"isActive"`
	ScrapeFrequency        string     `json:"scrapeFrequency"`
	LastScrapedAt          *time.Time `json:"lastScrapedAt,omitempty"`
	LastSuccessfulScrapeAt *time.Time `json:"lastSuccessfulScrapeAt,omitempty"`
	ScrapeErrorCount       int        `json:"scrapeErrorCount"`
	LastError              string     `json:"lastError,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !sourceTypes[req.SourceType] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown source type")
		return
	}
	if msg := validate.SourceURL(req.SourceURL); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if req.DisplayName == "" {
		httputil.WriteError(w, http.StatusBadRequest, "displayName is required")
		return
	}
	if msg := validate.SourceDisplayName(req.DisplayName); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.SourceDescription(req.Description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	category := req.Category
	if category == "" {
		category = "all"
	}
	if !sourceCategories[category] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown category")
		return
	}
	frequency := req.ScrapeFrequency
	if frequency == "" {
		frequency = "daily"
	}
	if !scrapeFrequencies[frequency] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown scrape frequency")
		return
	}

	var rec sourceRecord
	err := h.db.QueryRow(r.Context(),
		`INSERT INTO content_sources (user_id, source_type, source_url, display_name, description, category, scrape_frequency)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, source_type, source_url, display_name, COALESCE(description, ''), category,
		           is_active, scrape_frequency, last_scraped_at, last_successful_scrape_at,
		           scrape_error_count, COALESCE(last_error, ''), created_at, updated_at`,
		userID, req.SourceType, req.SourceURL, req.DisplayName, req.Description, category, frequency,
	).Scan(&rec.ID, &rec.SourceType, &rec.SourceURL, &rec.DisplayName, &rec.Description,
		&rec.Category, &rec.IsActive, &rec.ScrapeFrequency, &rec.LastScrapedAt,
		&rec.LastSuccessfulScrapeAt, &rec.ScrapeErrorCount, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create source")
		return
	}

	h.triggerScrape(rec.SourceURL)
	if rec.SourceType == "rss_feed" || rec.SourceType == "podcast_rss" {
		h.probeFeed(rec.ID, rec.SourceURL, rec.Description == "")
	}

	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sourceID := chi.URLParam(r, "id")

	var rec sourceRecord
	err := h.db.QueryRow(r.Context(), selectSource+" WHERE id = $1 AND user_id = $2", sourceID, userID).
		Scan(scanDest(&rec)...)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "source not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()

	query := selectSource + " WHERE user_id = $1"
	args := []any{userID}

	if active := q.Get("active"); active != "" {
		val, err := strconv.ParseBool(active)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		args = append(args, val)
		query += " AND is_active = $" + strconv.Itoa(len(args))
	}
	if cat := q.Get("category"); cat != "" {
		if !sourceCategories[cat] {
			httputil.WriteError(w, http.StatusBadRequest, "unknown category")
			return
		}
		args = append(args, cat)
		query += " AND category = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.db.Query(r.Context(), query, args...)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	defer rows.Close()

	sources := []sourceRecord{}
	for rows.Next() {
		var rec sourceRecord
		if err := rows.Scan(scanDest(&rec)...); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to read sources")
			return
		}
		sources = append(sources, rec)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sourceID := chi.URLParam(r, "id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DisplayName == nil && req.Description == nil && req.Category == nil &&
		req.ScrapeFrequency == nil && req.IsActive == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.DisplayName != nil {
		if *req.DisplayName == "" {
			httputil.WriteError(w, http.StatusBadRequest, "displayName must not be empty")
			return
		}
		if msg := validate.SourceDisplayName(*req.DisplayName); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if req.Description != nil {
		if msg := validate.SourceDescription(*req.Description); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if req.Category != nil && !sourceCategories[*req.Category] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown category")
		return
	}
	if req.ScrapeFrequency != nil && !scrapeFrequencies[*req.ScrapeFrequency] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown scrape frequency")
		return
	}

	var rec sourceRecord
	err := h.db.QueryRow(r.Context(), selectSource+" WHERE id = $1 AND user_id = $2", sourceID, userID).
		Scan(scanDest(&rec)...)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "source not found")
		return
	}

	if req.DisplayName != nil {
		rec.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		rec.Description = *req.Description
	}
	if req.Category != nil {
		rec.Category = *req.Category
	}
	if req.ScrapeFrequency != nil {
		rec.ScrapeFrequency = *req.ScrapeFrequency
	}
	if req.IsActive != nil {
		rec.IsActive = *req.IsActive
	}

	tag, err := h.db.Exec(r.Context(),
		`UPDATE content_sources SET display_name = $1, description = $2, category = $3,
		        scrape_frequency = $4, is_active = $5, updated_at = now()
		 WHERE id = $6 AND user_id = $7`,
		rec.DisplayName, rec.Description, rec.Category, rec.ScrapeFrequency, rec.IsActive, sourceID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update source")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "source not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sourceID := chi.URLParam(r, "id")

	var isActive bool
	err := h.db.QueryRow(r.Context(),
		`UPDATE content_sources SET is_active = NOT is_active, updated_at = now()
		 WHERE id = $1 AND user_id = $2 RETURNING is_active`,
		sourceID, userID,
	).Scan(&isActive)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "source not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": sourceID, "isActive": isActive})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sourceID := chi.URLParam(r, "id")

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM content_sources WHERE id = $1 AND user_id = $2`,
		sourceID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete source")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "source not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const selectSource = `SELECT id, source_type, source_url, display_name, COALESCE(description, ''), category,
       is_active, scrape_frequency, last_scraped_at, last_successful_scrape_at,
       scrape_error_count, COALESCE(last_error, ''), created_at, updated_at
FROM content_sources`

func scanDest(rec *sourceRecord) []any {
	return []any{&rec.ID, &rec.SourceType, &rec.SourceURL, &rec.DisplayName, &rec.Description,
		&rec.Category, &rec.IsActive, &rec.ScrapeFrequency, &rec.LastScrapedAt,
		&rec.LastSuccessfulScrapeAt, &rec.ScrapeErrorCount, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt}
}
