package video

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/reelfeed/reelfeed/internal/feed"
)

func feedColumns() []string {
	return []string{"id", "video_name", "title", "description", "category",
		"source_name", "thumbnail", "slides", "created_at"}
}

func TestFeedVideos_Projection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	created := time.Now().Add(-2 * time.Hour)
	slides := []byte(`[{"id":"s1","type":"text","content":{"body":"hi"}}]`)
	mock.ExpectQuery("SELECT id, video_name, title").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(feedColumns()).
			AddRow("v1", "videos/u/a.mp4", "First", "desc", "all", "", "", slides, created).
			AddRow("v2", "videos/u/b.mp4", "Second", "", "science", "Ars Technica", "thumbs/b.jpg", []byte(`[]`), created))

	h := newTestHandler(t, mock)
	videos, err := h.FeedVideos(t.Context(), "", 0, 1)
	if err != nil {
		t.Fatalf("FeedVideos: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}

	v := videos[0]
	if v.Category != "tech" {
		t.Errorf("category 'all' projected as %q, want tech", v.Category)
	}
	if v.SourceName != "Unknown Source" {
		t.Errorf("missing source projected as %q, want Unknown Source", v.SourceName)
	}
	if v.SourceURL != "https://media.test/videos/u/a.mp4" {
		t.Errorf("sourceURL = %q", v.SourceURL)
	}
	if v.Timestamp != "2 hours ago" {
		t.Errorf("timestamp = %q, want 2 hours ago", v.Timestamp)
	}
	if len(v.Slides) != 1 {
		t.Errorf("got %d slides, want 1", len(v.Slides))
	}

	if videos[1].Category != "science" || videos[1].SourceName != "Ars Technica" {
		t.Errorf("unexpected second video: %+v", videos[1])
	}
	if videos[1].Thumbnail != "https://media.test/thumbs/b.jpg" {
		t.Errorf("thumbnail = %q", videos[1].Thumbnail)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFeedVideos_CategoryFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id, video_name, title").
		WithArgs("science", 50).
		WillReturnRows(pgxmock.NewRows(feedColumns()))

	h := newTestHandler(t, mock)
	if _, err := h.FeedVideos(t.Context(), "science", 0, 1); err != nil {
		t.Fatalf("FeedVideos: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTileVideos(t *testing.T) {
	videos := []feed.Video{{ID: "a"}, {ID: "b"}}

	tiled := tileVideos(videos, 3)
	if len(tiled) != 6 {
		t.Fatalf("got %d videos, want 6", len(tiled))
	}
	// First pass keeps original ids so views still count.
	if tiled[0].ID != "a" || tiled[1].ID != "b" {
		t.Errorf("first pass ids = %q, %q", tiled[0].ID, tiled[1].ID)
	}
	want := []string{"a-repeat-1", "b-repeat-1", "a-repeat-2", "b-repeat-2"}
	for i, id := range want {
		if tiled[2+i].ID != id {
			t.Errorf("tiled[%d].ID = %q, want %q", 2+i, tiled[2+i].ID, id)
		}
		if !strings.Contains(tiled[2+i].ID, feed.RepeatMarker) {
			t.Errorf("id %q missing repeat marker", tiled[2+i].ID)
		}
	}

	if got := tileVideos(videos, 1); len(got) != 2 {
		t.Errorf("repeat 1 must not tile, got %d", len(got))
	}
	if got := tileVideos(nil, 5); got != nil {
		t.Errorf("empty input must stay empty, got %v", got)
	}
}

func TestFeedEndpoint_ParamValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	router := newTestRouter(newTestHandler(t, mock))

	for _, target := range []string{
		"/api/feed?category=crypto",
		"/api/feed?limit=0",
		"/api/feed?limit=abc",
		"/api/feed?repeat=0",
		"/api/feed?repeat=11",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestFeedEndpoint_EmptyList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id, video_name, title").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(feedColumns()))

	router := newTestRouter(newTestHandler(t, mock))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Videos []feed.Video `json:"videos"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Videos == nil || len(resp.Videos) != 0 {
		t.Errorf("want empty array, got %v", resp.Videos)
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "Just now"},
		{time.Minute, "1 minute ago"},
		{45 * time.Minute, "45 minutes ago"},
		{time.Hour, "1 hour ago"},
		{23 * time.Hour, "23 hours ago"},
		{26 * time.Hour, "1 day ago"},
		{29 * 24 * time.Hour, "29 days ago"},
		{31 * 24 * time.Hour, "1 month ago"},
		{200 * 24 * time.Hour, "6 months ago"},
		{400 * 24 * time.Hour, "1 year ago"},
		{3 * 365 * 24 * time.Hour, "3 years ago"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(now.Add(-tt.age), now); got != tt.want {
			t.Errorf("formatRelativeTime(-%v) = %q, want %q", tt.age, got, tt.want)
		}
	}
}

func TestCategorizeReferrer(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "direct"},
		{"not a url", "direct"},
		{"https://www.google.com/search?q=x", "search"},
		{"https://duckduckgo.com/", "search"},
		{"https://x.com/someone", "social"},
		{"https://www.reddit.com/r/golang", "social"},
		{"https://news.ycombinator.com/item?id=1", "news.ycombinator.com"},
	}
	for _, tt := range tests {
		if got := categorizeReferrer(tt.in); got != tt.want {
			t.Errorf("categorizeReferrer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseBrowserAndDevice(t *testing.T) {
	const chromeDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	const safariMobile = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

	if got := parseBrowser(chromeDesktop); got != "Chrome" {
		t.Errorf("browser = %q, want Chrome", got)
	}
	if got := parseDevice(chromeDesktop); got != "Desktop" {
		t.Errorf("device = %q, want Desktop", got)
	}
	if got := parseDevice(safariMobile); got != "Mobile" {
		t.Errorf("device = %q, want Mobile", got)
	}
	if got := parseBrowser(""); got != "Unknown" {
		t.Errorf("empty UA browser = %q, want Unknown", got)
	}
}

func TestViewerHash_Stable(t *testing.T) {
	a := viewerHash("1.2.3.4", "agent")
	b := viewerHash("1.2.3.4", "agent")
	c := viewerHash("1.2.3.5", "agent")
	if a != b {
		t.Error("same input must hash identically")
	}
	if a == c {
		t.Error("different IPs must hash differently")
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Errorf("clientIP = %q, want 10.0.0.1", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("clientIP = %q, want 203.0.113.7", got)
	}
}
