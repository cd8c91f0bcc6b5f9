package video

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

const defaultSessionTTL = 30 * time.Minute

// sessionStore keeps live feed sessions in memory. A janitor evicts
// sessions that have not seen an event within the TTL.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*feed.Session
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

func newSessionStore(ttl time.Duration) *sessionStore {
	s := &sessionStore{
		sessions: make(map[string]*feed.Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *sessionStore) put(id string, sess *feed.Session) {
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
}

func (s *sessionStore) get(id string) *feed.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *sessionStore) remove(id string) *feed.Session {
	s.mu.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now().Add(-s.ttl))
		}
	}
}

func (s *sessionStore) sweep(cutoff time.Time) {
	s.mu.Lock()
	var expired []*feed.Session
	for id, sess := range s.sessions {
		if sess.IdleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range expired {
		sess.Close()
	}
}

func (s *sessionStore) close() {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*feed.Session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}

type createSessionRequest struct {
	Category       string  `json:"category,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	Repeat         int     `json:"repeat,omitempty"`
	ViewportHeight float64 `json:"viewportHeight,omitempty"`
}

type sessionResponse struct {
	SessionID string            `json:"sessionId"`
	Videos    []feed.Video      `json:"videos"`
	State     feed.SessionState `json:"state"`
}

// CreateFeedSession builds a session over the current published feed.
// The session engine then consumes discrete scroll/intersection/key
// events and recomputes the playback state server-side.
func (h *Handler) CreateFeedSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Category != "" && !categories[req.Category] {
		httputil.WriteError(w, http.StatusBadRequest, "unknown category")
		return
	}
	if req.Repeat < 0 || req.Repeat > 10 {
		httputil.WriteError(w, http.StatusBadRequest, "repeat must be between 0 and 10")
		return
	}

	videos, err := h.FeedVideos(r.Context(), req.Category, req.Limit, req.Repeat)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}

	sess := feed.NewSession(feed.SessionConfig{
		Videos:         videos,
		Counter:        h,
		ViewportHeight: req.ViewportHeight,
	})

	id, err := newSessionID()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.sessions.put(id, sess)

	if videos == nil {
		videos = []feed.Video{}
	}
	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{
		SessionID: id,
		Videos:    videos,
		State:     sess.State(),
	})
}

type eventsRequest struct {
	Events []feed.Event `json:"events"`
}

// SessionEvents applies a batch of events and returns the recomputed
// state.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.get(chi.URLParam(r, "id"))
	if sess == nil {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}

	var req eventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Events) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "events are required")
		return
	}
	for _, e := range req.Events {
		if err := sess.Apply(e); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, sess.State())
}

func (h *Handler) SessionState(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.get(chi.URLParam(r, "id"))
	if sess == nil {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess.State())
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.remove(chi.URLParam(r, "id"))
	if sess == nil {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

func newSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
