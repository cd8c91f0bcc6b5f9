// Package feed implements the playback engine behind the video feed: a
// per-video player state machine and a session that owns the vertical
// list, derives the active video from scroll position, and routes
// keyboard input between vertical and horizontal navigation.
package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/reelfeed/reelfeed/internal/slide"
)

// PlayThreshold is the viewport intersection ratio above which a video
// on its video slide autoplays.
const PlayThreshold = 0.7

// RepeatMarker suffixes ids of videos tiled for the infinite-scroll
// effect; such instances never count views.
const RepeatMarker = "-repeat-"

const flashDuration = 500 * time.Millisecond

// Video is the feed-facing projection of a stored video record. It is
// built once at session start and never mutated afterwards.
type Video struct {
	ID          string        `json:"id"`
	SourceURL   string        `json:"sourceUrl"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	SourceName  string        `json:"sourceName"`
	Timestamp   string        `json:"timestamp"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Slides      []slide.Slide `json:"-"`
}

// Surface is the playback backend of one player. Play reports autoplay
// rejection as an error; the player logs it and stays paused.
type Surface interface {
	Play() error
	Pause()
}

type noopSurface struct{}

func (noopSurface) Play() error { return nil }
func (noopSurface) Pause()      {}

// ViewCounter records one view for a video id. Calls are fire-and-forget
// from the player's perspective; failures are logged and never retried.
type ViewCounter interface {
	CountView(ctx context.Context, videoID string) error
}

// MutePref is the single mute preference shared by every player in a
// session. Sessions start muted.
type MutePref struct {
	mu    sync.Mutex
	muted bool
}

func NewMutePref() *MutePref {
	return &MutePref{muted: true}
}

func (m *MutePref) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *MutePref) Set(muted bool) {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
}

type Direction int

const (
	Left Direction = iota
	Right
)

// Player owns one video's ephemeral state: play/pause, like/dislike,
// carousel position, intersection ratio, and the at-most-once view
// guard. All exported methods are safe for concurrent use.
type Player struct {
	video   Video
	surface Surface
	mute    *MutePref
	counter ViewCounter
	logger  *slog.Logger

	mu           sync.Mutex
	playing      bool
	active       bool
	liked        bool
	disliked     bool
	likeCount    int
	slideIndex   int
	intersection float64
	viewCounted  bool
	flash        string
	flashTimer   *time.Timer
	closed       bool
}

func NewPlayer(video Video, surface Surface, mute *MutePref, counter ViewCounter, logger *slog.Logger) *Player {
	if surface == nil {
		surface = noopSurface{}
	}
	if mute == nil {
		mute = NewMutePref()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		video:     video,
		surface:   surface,
		mute:      mute,
		counter:   counter,
		logger:    logger,
		likeCount: SeedLikeCount(video.ID),
	}
}

// SeedLikeCount derives the deterministic baseline like count for a
// video id: sum of character codes times a fixed odd constant, modulo
// 10000, plus 1000.
func SeedLikeCount(id string) int {
	sum := 0
	for _, r := range id {
		sum += int(r)
	}
	return sum*9876543%10000 + 1000
}

func (p *Player) Video() Video { return p.video }

// SetIntersection records a new viewport intersection ratio and
// re-evaluates the autoplay rule.
func (p *Player) SetIntersection(ratio float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.intersection = ratio
	p.evaluatePlayback()
	p.maybeCountView()
}

// SetActive marks this player as the feed's active video. Becoming
// active always resets the carousel to the video slide.
func (p *Player) SetActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if active && !p.active {
		p.slideIndex = 0
	}
	p.active = active
	p.evaluatePlayback()
	p.maybeCountView()
}

// ScrollToSlide moves the carousel one step. Right from the last slide
// wraps to the video slide; left from the video slide wraps to the last
// content slide. Returns the new index.
func (p *Player) ScrollToSlide(dir Direction) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return p.slideIndex
	}
	n := len(p.video.Slides) // content slides; carousel length is n+1
	switch dir {
	case Right:
		if p.slideIndex >= n {
			p.slideIndex = 0
		} else {
			p.slideIndex++
		}
	case Left:
		if p.slideIndex <= 0 {
			p.slideIndex = n
		} else {
			p.slideIndex--
		}
	}
	p.evaluatePlayback()
	return p.slideIndex
}

// TogglePlayback handles a tap on the video: flips play/pause and shows
// the transient icon flash for 500ms.
func (p *Player) TogglePlayback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.playing {
		p.surface.Pause()
		p.playing = false
		p.setFlash("pause")
		return
	}
	if err := p.surface.Play(); err != nil {
		p.logger.Warn("playback rejected", "videoId", p.video.ID, "error", err)
		p.playing = false
		return
	}
	p.playing = true
	p.setFlash("play")
}

func (p *Player) ToggleMute() {
	p.mute.Set(!p.mute.Muted())
}

// Like increments the count and clears any dislike. Liking twice undoes
// the like.
func (p *Player) Like() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.liked {
		p.liked = false
		p.likeCount--
		return
	}
	p.liked = true
	p.disliked = false
	p.likeCount++
}

// Dislike toggles the dislike flag, clearing a like (and its count
// increment) if present.
func (p *Player) Dislike() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.disliked {
		p.disliked = false
		return
	}
	if p.liked {
		p.liked = false
		p.likeCount--
	}
	p.disliked = true
}

// Close stops the flash timer and freezes the player. No callbacks fire
// after Close returns.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.flashTimer != nil {
		p.flashTimer.Stop()
		p.flashTimer = nil
	}
	if p.playing {
		p.surface.Pause()
		p.playing = false
	}
}

// PlayerState is a point-in-time snapshot for API responses.
type PlayerState struct {
	ID          string `json:"id"`
	Playing     bool   `json:"playing"`
	Muted       bool   `json:"muted"`
	Liked       bool   `json:"liked"`
	Disliked    bool   `json:"disliked"`
	LikeCount   int    `json:"likeCount"`
	SlideIndex  int    `json:"slideIndex"`
	SlideCount  int    `json:"slideCount"`
	ViewCounted bool   `json:"viewCounted"`
	Flash       string `json:"flash,omitempty"`
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PlayerState{
		ID:          p.video.ID,
		Playing:     p.playing,
		Muted:       p.mute.Muted(),
		Liked:       p.liked,
		Disliked:    p.disliked,
		LikeCount:   p.likeCount,
		SlideIndex:  p.slideIndex,
		SlideCount:  len(p.video.Slides) + 1,
		ViewCounted: p.viewCounted,
		Flash:       p.flash,
	}
}

func (p *Player) SlideIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slideIndex
}

// evaluatePlayback applies the continuous autoplay rule: playing iff
// the element is sufficiently visible and the carousel shows the video
// slide. Recomputed from current inputs on every change, never
// accumulated. Caller holds p.mu.
func (p *Player) evaluatePlayback() {
	want := p.intersection >= PlayThreshold && p.slideIndex == 0
	if want == p.playing {
		return
	}
	if want {
		if err := p.surface.Play(); err != nil {
			p.logger.Warn("autoplay rejected", "videoId", p.video.ID, "error", err)
			p.playing = false
			return
		}
		p.playing = true
		return
	}
	p.surface.Pause()
	p.playing = false
}

// maybeCountView fires the at-most-once view increment when the player
// is both the active video and intersecting, unless the id is a repeat
// instance. The guard is never rolled back on failure. Caller holds
// p.mu.
func (p *Player) maybeCountView() {
	if p.viewCounted || p.counter == nil {
		return
	}
	if !p.active || p.intersection < PlayThreshold {
		return
	}
	if strings.Contains(p.video.ID, RepeatMarker) {
		return
	}
	p.viewCounted = true

	id := p.video.ID
	counter := p.counter
	logger := p.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := counter.CountView(ctx, id); err != nil {
			logger.Error("failed to record view", "videoId", id, "error", err)
		}
	}()
}

// setFlash shows a transient play/pause icon and clears it after 500ms.
// Caller holds p.mu.
func (p *Player) setFlash(icon string) {
	p.flash = icon
	if p.flashTimer != nil {
		p.flashTimer.Stop()
	}
	p.flashTimer = time.AfterFunc(flashDuration, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return
		}
		p.flash = ""
	})
}
