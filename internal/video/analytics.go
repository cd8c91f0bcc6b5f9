package video

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

type dailyViews struct {
	Date        string `json:"date"`
	Views       int64  `json:"views"`
	UniqueViews int64  `json:"uniqueViews"`
}

type breakdownEntry struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type analyticsResponse struct {
	VideoID     string           `json:"videoId"`
	Range       string           `json:"range"`
	TotalViews  int64            `json:"totalViews"`
	UniqueViews int64            `json:"uniqueViews"`
	Daily       []dailyViews     `json:"daily"`
	Referrers   []breakdownEntry `json:"referrers"`
	Browsers    []breakdownEntry `json:"browsers"`
	Devices     []breakdownEntry `json:"devices"`
	Countries   []breakdownEntry `json:"countries"`
}

// Analytics serves GET /api/videos/{id}/analytics?range=7d|30d|90d|all
// for the owner dashboard. Days without views are zero-filled.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var id string
	err := h.db.QueryRow(r.Context(),
		`SELECT id FROM videos WHERE id = $1 AND user_id = $2`,
		videoID, userID,
	).Scan(&id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	rangeParam := r.URL.Query().Get("range")
	if rangeParam == "" {
		rangeParam = "7d"
	}
	var days int
	switch rangeParam {
	case "7d":
		days = 7
	case "30d":
		days = 30
	case "90d":
		days = 90
	case "all":
		days = 0
	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid range: must be 7d, 30d, 90d, or all")
		return
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	var since time.Time
	if days > 0 {
		since = now.AddDate(0, 0, -(days - 1))
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT date_trunc('day', created_at) AS day, COUNT(*) AS views, COUNT(DISTINCT viewer_hash) AS unique_views
		 FROM video_views WHERE video_id = $1 AND created_at >= $2
		 GROUP BY day ORDER BY day`,
		videoID, since,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query analytics")
		return
	}
	defer rows.Close()

	dataByDate := make(map[string]dailyViews)
	for rows.Next() {
		var day time.Time
		var views, uniqueViews int64
		if err := rows.Scan(&day, &views, &uniqueViews); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan analytics")
			return
		}
		dateStr := day.Format("2006-01-02")
		dataByDate[dateStr] = dailyViews{Date: dateStr, Views: views, UniqueViews: uniqueViews}
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read analytics")
		return
	}

	daily := make([]dailyViews, 0)
	if days > 0 {
		for i := days - 1; i >= 0; i-- {
			dateStr := now.AddDate(0, 0, -i).Format("2006-01-02")
			if entry, ok := dataByDate[dateStr]; ok {
				daily = append(daily, entry)
			} else {
				daily = append(daily, dailyViews{Date: dateStr})
			}
		}
	} else {
		for _, entry := range dataByDate {
			daily = append(daily, entry)
		}
		sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	}

	resp := analyticsResponse{VideoID: videoID, Range: rangeParam, Daily: daily}
	for _, d := range daily {
		resp.TotalViews += d.Views
	}
	err = h.db.QueryRow(r.Context(),
		`SELECT COUNT(DISTINCT viewer_hash) FROM video_views WHERE video_id = $1 AND created_at >= $2`,
		videoID, since,
	).Scan(&resp.UniqueViews)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query analytics")
		return
	}

	for _, b := range []struct {
		column string
		dest   *[]breakdownEntry
	}{
		{"referrer", &resp.Referrers},
		{"browser", &resp.Browsers},
		{"device", &resp.Devices},
		{"country", &resp.Countries},
	} {
		entries, err := h.viewBreakdown(r, videoID, b.column, since)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to query analytics")
			return
		}
		*b.dest = entries
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) viewBreakdown(r *http.Request, videoID, column string, since time.Time) ([]breakdownEntry, error) {
	// column is one of four fixed names above, never user input.
	rows, err := h.db.Query(r.Context(),
		`SELECT `+column+`, COUNT(*) FROM video_views
		 WHERE video_id = $1 AND created_at >= $2 AND `+column+` != ''
		 GROUP BY `+column+` ORDER BY COUNT(*) DESC LIMIT 10`,
		videoID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []breakdownEntry{}
	for rows.Next() {
		var e breakdownEntry
		if err := rows.Scan(&e.Label, &e.Count); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
