package feed

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

const (
	KeyUp    = "ArrowUp"
	KeyDown  = "ArrowDown"
	KeyLeft  = "ArrowLeft"
	KeyRight = "ArrowRight"
)

// SessionConfig configures a feed session. NewSurface may be nil, in
// which case players get a no-op playback surface.
type SessionConfig struct {
	Videos         []Video
	Counter        ViewCounter
	Logger         *slog.Logger
	NewSurface     func(Video) Surface
	ViewportHeight float64
}

// Session owns one viewer's pass through the feed: the ordered players,
// the scroll-derived active index, the shared mute preference, and all
// keyboard routing. The active index is recomputed from the current
// scroll offset on every event rather than stepped, so out-of-order
// scroll and intersection callbacks cannot make it drift.
type Session struct {
	mu             sync.Mutex
	players        []*Player
	mute           *MutePref
	scrollTop      float64
	viewportHeight float64
	activeIndex    int
	lastEvent      time.Time
	closed         bool
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 1
	}
	s := &Session{
		mute:           NewMutePref(),
		viewportHeight: cfg.ViewportHeight,
		lastEvent:      time.Now(),
	}
	for _, v := range cfg.Videos {
		var surface Surface
		if cfg.NewSurface != nil {
			surface = cfg.NewSurface(v)
		}
		s.players = append(s.players, NewPlayer(v, surface, s.mute, cfg.Counter, cfg.Logger))
	}
	if len(s.players) > 0 {
		s.players[0].SetActive(true)
	}
	return s
}

// Empty reports whether the session was built from an empty video list.
// An empty session has no players and every event is a no-op.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players) == 0
}

func (s *Session) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeIndex
}

// Player returns the player at index, or nil when out of range.
func (s *Session) Player(index int) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.players) {
		return nil
	}
	return s.players[index]
}

// HandleScroll records a new scroll position and recomputes the active
// video from it.
func (s *Session) HandleScroll(scrollTop, viewportHeight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.players) == 0 || viewportHeight <= 0 {
		return
	}
	s.scrollTop = scrollTop
	s.viewportHeight = viewportHeight
	s.applyScrollLocked()
}

// HandleIntersection forwards a visibility change to one player.
func (s *Session) HandleIntersection(index int, ratio float64) {
	s.mu.Lock()
	if s.closed || index < 0 || index >= len(s.players) {
		s.mu.Unlock()
		return
	}
	p := s.players[index]
	s.mu.Unlock()
	p.SetIntersection(ratio)
}

// HandleKey routes one key press. Left and right always go to the
// active player's carousel and never change the vertical position. Up
// and down scroll by exactly one viewport, but only while the active
// player shows its video slide; on a content slide they are suppressed.
func (s *Session) HandleKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.players) == 0 {
		return
	}
	active := s.players[s.activeIndex]
	switch key {
	case KeyLeft:
		active.ScrollToSlide(Left)
	case KeyRight:
		active.ScrollToSlide(Right)
	case KeyUp, KeyDown:
		if active.SlideIndex() != 0 {
			return
		}
		if key == KeyUp {
			s.scrollTop -= s.viewportHeight
		} else {
			s.scrollTop += s.viewportHeight
		}
		maxTop := float64(len(s.players)-1) * s.viewportHeight
		s.scrollTop = math.Max(0, math.Min(s.scrollTop, maxTop))
		s.applyScrollLocked()
	}
}

// HandleTap toggles play/pause on one player.
func (s *Session) HandleTap(index int) {
	if p := s.Player(index); p != nil {
		p.TogglePlayback()
	}
}

func (s *Session) ToggleMute() {
	s.mute.Set(!s.mute.Muted())
}

func (s *Session) Like(index int) {
	if p := s.Player(index); p != nil {
		p.Like()
	}
}

func (s *Session) Dislike(index int) {
	if p := s.Player(index); p != nil {
		p.Dislike()
	}
}

// Event is one discrete input from the client. Type selects which
// fields are meaningful.
type Event struct {
	Type           string  `json:"type"` // scroll, intersection, key, tap, like, dislike, mute
	ScrollTop      float64 `json:"scrollTop,omitempty"`
	ViewportHeight float64 `json:"viewportHeight,omitempty"`
	Index          int     `json:"index,omitempty"`
	Ratio          float64 `json:"ratio,omitempty"`
	Key            string  `json:"key,omitempty"`
}

// Apply dispatches one event. Unknown event types are an error; events
// against closed sessions are silently dropped.
func (s *Session) Apply(e Event) error {
	s.touch()
	switch e.Type {
	case "scroll":
		s.HandleScroll(e.ScrollTop, e.ViewportHeight)
	case "intersection":
		s.HandleIntersection(e.Index, e.Ratio)
	case "key":
		switch e.Key {
		case KeyUp, KeyDown, KeyLeft, KeyRight:
			s.HandleKey(e.Key)
		default:
			return fmt.Errorf("unknown key %q", e.Key)
		}
	case "tap":
		s.HandleTap(e.Index)
	case "like":
		s.Like(e.Index)
	case "dislike":
		s.Dislike(e.Index)
	case "mute":
		s.ToggleMute()
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// SessionState is a full snapshot for API responses.
type SessionState struct {
	Empty          bool          `json:"empty"`
	ActiveIndex    int           `json:"activeIndex"`
	ScrollTop      float64       `json:"scrollTop"`
	ViewportHeight float64       `json:"viewportHeight"`
	Muted          bool          `json:"muted"`
	Players        []PlayerState `json:"players"`
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	players := make([]*Player, len(s.players))
	copy(players, s.players)
	state := SessionState{
		Empty:          len(players) == 0,
		ActiveIndex:    s.activeIndex,
		ScrollTop:      s.scrollTop,
		ViewportHeight: s.viewportHeight,
		Muted:          s.mute.Muted(),
	}
	s.mu.Unlock()

	state.Players = make([]PlayerState, len(players))
	for i, p := range players {
		state.Players[i] = p.State()
	}
	return state
}

// IdleSince reports the time of the last applied event.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvent
}

// Close tears down every player. Events after Close are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	players := s.players
	s.mu.Unlock()
	for _, p := range players {
		p.Close()
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastEvent = time.Now()
	s.mu.Unlock()
}

// applyScrollLocked rederives the active index from the scroll offset
// and activates the new player when it changes. Caller holds s.mu.
func (s *Session) applyScrollLocked() {
	idx := int(math.Round(s.scrollTop / s.viewportHeight))
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.players)-1 {
		idx = len(s.players) - 1
	}
	if idx == s.activeIndex {
		return
	}
	prev := s.players[s.activeIndex]
	next := s.players[idx]
	s.activeIndex = idx
	// Player methods take the player lock only; safe under s.mu.
	prev.SetActive(false)
	next.SetActive(true)
}
