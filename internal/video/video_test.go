package video

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/geoip"
)

type mockStorage struct {
	publicBase   string
	uploadURL    string
	uploadErr    error
	deleteErr    error
	deleteCalled chan string
	headSize     int64
	headType     string
	headErr      error
}

func (m *mockStorage) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return m.publicBase + "/" + key
}

func (m *mockStorage) GenerateUploadURL(_ context.Context, _ string, _ string, _ int64, _ time.Duration) (string, error) {
	return m.uploadURL, m.uploadErr
}

func (m *mockStorage) HeadObject(_ context.Context, _ string) (int64, string, error) {
	return m.headSize, m.headType, m.headErr
}

func (m *mockStorage) DeleteObject(_ context.Context, key string) error {
	if m.deleteCalled != nil {
		m.deleteCalled <- key
	}
	return m.deleteErr
}

const testJWTSecret = "test-secret-for-video-tests"
const testUserID = "550e8400-e29b-41d4-a716-446655440000"
const testVideoID = "650e8400-e29b-41d4-a716-446655440000"

func newTestHandler(t *testing.T, db database.DBTX) *Handler {
	t.Helper()
	h := NewHandler(db, &mockStorage{publicBase: "https://media.test", uploadURL: "https://upload.test/put"}, geoip.Open(""))
	t.Cleanup(h.Close)
	return h
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	authMiddleware := auth.NewHandler(nil, testJWTSecret, false).Middleware
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/videos", h.Create)
		r.Get("/api/videos", h.List)
		r.Get("/api/videos/{id}", h.Get)
		r.Patch("/api/videos/{id}", h.Update)
		r.Post("/api/videos/{id}/publish", h.TogglePublish)
		r.Delete("/api/videos/{id}", h.Delete)
		r.Get("/api/videos/{id}/analytics", h.Analytics)
	})
	r.Get("/api/feed", h.Feed)
	r.Post("/api/feed/{id}/view", h.RecordView)
	r.Post("/api/feed/session", h.CreateFeedSession)
	r.Post("/api/feed/session/{id}/events", h.SessionEvents)
	r.Get("/api/feed/session/{id}", h.SessionState)
	r.Delete("/api/feed/session/{id}", h.DeleteSession)
	r.Get("/feed", h.FeedPage)
	return r
}

func authenticatedRequest(t *testing.T, method, target string, body []byte) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	token, err := auth.GenerateAccessToken(testJWTSecret, testUserID)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func ownedVideoColumns() []string {
	return []string{"id", "video_name", "title", "description", "thumbnail", "category",
		"source_id", "source_name", "source_url", "duration", "view_count", "slides",
		"is_published", "published_at", "created_at", "updated_at"}
}

func ownedVideoRow(published bool, publishedAt *time.Time) []any {
	now := time.Now()
	return []any{testVideoID, "videos/u/abc.mp4", "Title", "", "", "tech",
		"", "", "", 30, 5, []byte(`[]`), published, publishedAt, now, now}
}

func TestCreate_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO videos").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testVideoID))

	h := newTestHandler(t, mock)
	body := []byte(`{"title":"My Video","fileSize":1024,"category":"tech",
		"slides":[{"id":"s1","type":"text","content":{"body":"hello"}}]}`)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodPost, "/api/videos", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp createResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != testVideoID || resp.UploadURL == "" || resp.VideoName == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreate_Validation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	h := newTestHandler(t, mock)
	router := newTestRouter(h)

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"fileSize":1024}`},
		{"bad category", `{"title":"x","fileSize":1024,"category":"crypto"}`},
		{"zero file size", `{"title":"x"}`},
		{"bad content type", `{"title":"x","fileSize":1,"contentType":"video/avi"}`},
		{"invalid slides", `{"title":"x","fileSize":1,"slides":[{"id":"s1","type":"text","content":{}}]}`},
		{"duplicate slide ids", `{"title":"x","fileSize":1,"slides":[
			{"id":"s1","type":"text","content":{"body":"a"}},
			{"id":"s1","type":"text","content":{"body":"b"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authenticatedRequest(t, http.MethodPost, "/api/videos", []byte(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreate_RequiresAuth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	h := newTestHandler(t, mock)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/videos", bytes.NewReader([]byte(`{}`)))
	newTestRouter(h).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUpdate_PublishStampsPublishedAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id, video_name, title").
		WithArgs(testVideoID, testUserID).
		WillReturnRows(pgxmock.NewRows(ownedVideoColumns()).AddRow(ownedVideoRow(false, nil)...))
	mock.ExpectExec("UPDATE videos SET title").
		WithArgs("Title", "", "tech", "", []byte(`[]`), true, pgxmock.AnyArg(), testVideoID, testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	h := newTestHandler(t, mock)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/videos/"+testVideoID, []byte(`{"isPublished":true}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp videoRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.IsPublished || resp.PublishedAt == nil {
		t.Errorf("publish did not stamp publishedAt: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdate_UnpublishClearsPublishedAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	publishedAt := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT id, video_name, title").
		WithArgs(testVideoID, testUserID).
		WillReturnRows(pgxmock.NewRows(ownedVideoColumns()).AddRow(ownedVideoRow(true, &publishedAt)...))
	mock.ExpectExec("UPDATE videos SET title").
		WithArgs("Title", "", "tech", "", []byte(`[]`), false, (*time.Time)(nil), testVideoID, testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	h := newTestHandler(t, mock)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/videos/"+testVideoID, []byte(`{"isPublished":false}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp videoRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.IsPublished || resp.PublishedAt != nil {
		t.Errorf("unpublish did not clear publishedAt: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdate_NothingToUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	h := newTestHandler(t, mock)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/videos/"+testVideoID, []byte(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id, video_name, title").
		WithArgs(testVideoID, testUserID).
		WillReturnError(context.DeadlineExceeded)

	h := newTestHandler(t, mock)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/videos/"+testVideoID, []byte(`{"title":"New"}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTogglePublish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("UPDATE videos").
		WithArgs(testVideoID, testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"is_published"}).AddRow(true))

	h := newTestHandler(t, mock)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodPost,
		"/api/videos/"+testVideoID+"/publish", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDelete_RemovesMediaAsync(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("DELETE FROM videos").
		WithArgs(testVideoID, testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"video_name"}).AddRow("videos/u/abc.mp4"))

	storage := &mockStorage{deleteCalled: make(chan string, 1)}
	h := NewHandler(mock, storage, geoip.Open(""))
	defer h.Close()

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodDelete,
		"/api/videos/"+testVideoID, nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	select {
	case key := <-storage.deleteCalled:
		if key != "videos/u/abc.mp4" {
			t.Errorf("deleted key = %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Error("media delete never fired")
	}
}

func TestList_FilterValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	h := newTestHandler(t, mock)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodGet,
		"/api/videos?category=crypto", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodGet,
		"/api/videos?published=maybe", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestList_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id, video_name, title").
		WithArgs(testUserID, true, 50, 0).
		WillReturnRows(pgxmock.NewRows(ownedVideoColumns()).AddRow(ownedVideoRow(true, nil)...))

	h := newTestHandler(t, mock)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, authenticatedRequest(t, http.MethodGet,
		"/api/videos?published=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Videos []videoRecord `json:"videos"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Videos) != 1 || resp.Videos[0].ID != testVideoID {
		t.Errorf("unexpected list: %+v", resp.Videos)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
