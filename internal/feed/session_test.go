package feed

import (
	"testing"
	"time"
)

func newTestSession(n, contentSlides int) *Session {
	videos := make([]Video, n)
	for i := range videos {
		videos[i] = testVideo("v"+string(rune('1'+i)), contentSlides)
	}
	return NewSession(SessionConfig{Videos: videos, ViewportHeight: 800})
}

func TestSession_Empty(t *testing.T) {
	s := NewSession(SessionConfig{})
	if !s.Empty() {
		t.Fatal("session from empty list must be empty")
	}
	st := s.State()
	if !st.Empty || len(st.Players) != 0 {
		t.Errorf("state = %+v, want empty with zero players", st)
	}
	// Events against an empty session are no-ops.
	s.HandleKey(KeyDown)
	s.HandleScroll(800, 800)
	if got := s.ActiveIndex(); got != 0 {
		t.Errorf("active index = %d, want 0", got)
	}
}

func TestSession_ActiveIndexFromScroll(t *testing.T) {
	s := newTestSession(3, 0)
	defer s.Close()

	tests := []struct {
		scrollTop float64
		want      int
	}{
		{0, 0},
		{300, 0}, // rounds down
		{500, 1}, // rounds up
		{800, 1},
		{1600, 2},
		{5000, 2}, // clamped
		{-100, 0}, // clamped
	}
	for _, tt := range tests {
		s.HandleScroll(tt.scrollTop, 800)
		if got := s.ActiveIndex(); got != tt.want {
			t.Errorf("scrollTop %.0f: active = %d, want %d", tt.scrollTop, got, tt.want)
		}
	}
}

func TestSession_VerticalKeys(t *testing.T) {
	s := newTestSession(3, 0)
	defer s.Close()

	s.HandleKey(KeyDown)
	if got := s.ActiveIndex(); got != 1 {
		t.Fatalf("after Down: active = %d, want 1", got)
	}
	s.HandleKey(KeyDown)
	if got := s.ActiveIndex(); got != 2 {
		t.Fatalf("after second Down: active = %d, want 2", got)
	}
	s.HandleKey(KeyDown)
	if got := s.ActiveIndex(); got != 2 {
		t.Errorf("Down at bottom: active = %d, want 2", got)
	}
	s.HandleKey(KeyUp)
	if got := s.ActiveIndex(); got != 1 {
		t.Errorf("after Up: active = %d, want 1", got)
	}
	s.HandleKey(KeyUp)
	s.HandleKey(KeyUp)
	if got := s.ActiveIndex(); got != 0 {
		t.Errorf("Up at top: active = %d, want 0", got)
	}
}

func TestSession_HorizontalKeysNeverChangeActive(t *testing.T) {
	s := newTestSession(3, 2)
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.HandleKey(KeyRight)
		s.HandleKey(KeyLeft)
	}
	if got := s.ActiveIndex(); got != 0 {
		t.Errorf("active = %d, want 0", got)
	}
}

func TestSession_VerticalSuppressedOnContentSlide(t *testing.T) {
	s := newTestSession(3, 2)
	defer s.Close()

	s.HandleKey(KeyRight)
	if got := s.Player(0).SlideIndex(); got != 1 {
		t.Fatalf("slide = %d, want 1", got)
	}
	s.HandleKey(KeyDown)
	if got := s.ActiveIndex(); got != 0 {
		t.Errorf("Down on content slide moved active to %d", got)
	}
	s.HandleKey(KeyUp)
	if got := s.ActiveIndex(); got != 0 {
		t.Errorf("Up on content slide moved active to %d", got)
	}

	s.HandleKey(KeyLeft)
	if got := s.Player(0).SlideIndex(); got != 0 {
		t.Fatalf("slide = %d, want 0 after Left", got)
	}
	s.HandleKey(KeyDown)
	if got := s.ActiveIndex(); got != 1 {
		t.Errorf("Down on video slide: active = %d, want 1", got)
	}
}

func TestSession_ActivationResetsSlide(t *testing.T) {
	s := newTestSession(2, 2)
	defer s.Close()

	s.HandleKey(KeyRight)
	if got := s.Player(0).SlideIndex(); got != 1 {
		t.Fatalf("slide = %d, want 1", got)
	}

	// Switch away and back via scroll; video 0 must land on slide 0.
	s.HandleScroll(800, 800)
	if got := s.ActiveIndex(); got != 1 {
		t.Fatalf("active = %d, want 1", got)
	}
	s.HandleScroll(0, 800)
	if got := s.Player(0).SlideIndex(); got != 0 {
		t.Errorf("reactivated video on slide %d, want 0", got)
	}
}

func TestSession_EndToEndKeyboardScenario(t *testing.T) {
	s := newTestSession(3, 2)
	defer s.Close()

	s.HandleKey(KeyRight)
	if got := s.Player(0).SlideIndex(); got != 1 {
		t.Fatalf("Right: slide = %d, want 1", got)
	}
	s.HandleKey(KeyDown)
	if got := s.ActiveIndex(); got != 0 {
		t.Fatalf("Down on slide 1: active = %d, want 0", got)
	}
	s.HandleKey(KeyLeft)
	if got := s.Player(0).SlideIndex(); got != 0 {
		t.Fatalf("Left: slide = %d, want 0", got)
	}
	s.HandleKey(KeyDown)
	s.HandleKey(KeyDown)
	if got := s.ActiveIndex(); got != 2 {
		t.Fatalf("after two Downs: active = %d, want 2", got)
	}
}

func TestSession_ViewCountOnActivation(t *testing.T) {
	counter := newFakeCounter()
	videos := []Video{testVideo("v1", 0), testVideo("v2", 0)}
	s := NewSession(SessionConfig{Videos: videos, Counter: counter, ViewportHeight: 800})
	defer s.Close()

	// Active at mount, but not yet intersecting: no view.
	time.Sleep(20 * time.Millisecond)
	if counter.calls() != 0 {
		t.Fatal("counted before intersecting")
	}

	s.HandleIntersection(0, 0.9)
	if id := counter.waitForCall(t); id != "v1" {
		t.Errorf("counted %q, want v1", id)
	}

	// Second video becomes both visible and active.
	s.HandleIntersection(1, 0.9)
	s.HandleScroll(800, 800)
	if id := counter.waitForCall(t); id != "v2" {
		t.Errorf("counted %q, want v2", id)
	}
}

func TestSession_MuteShared(t *testing.T) {
	s := newTestSession(2, 0)
	defer s.Close()

	st := s.State()
	if !st.Muted || !st.Players[0].Muted || !st.Players[1].Muted {
		t.Fatal("session must start muted")
	}
	s.ToggleMute()
	st = s.State()
	if st.Muted || st.Players[0].Muted || st.Players[1].Muted {
		t.Error("unmute must apply to every player")
	}
}

func TestSession_ApplyEvents(t *testing.T) {
	s := newTestSession(2, 1)
	defer s.Close()

	events := []Event{
		{Type: "intersection", Index: 0, Ratio: 0.9},
		{Type: "key", Key: KeyRight},
		{Type: "like", Index: 0},
		{Type: "mute"},
		{Type: "scroll", ScrollTop: 800, ViewportHeight: 800},
	}
	for _, e := range events {
		if err := s.Apply(e); err != nil {
			t.Fatalf("apply %+v: %v", e, err)
		}
	}

	st := s.State()
	if st.ActiveIndex != 1 {
		t.Errorf("active = %d, want 1", st.ActiveIndex)
	}
	if !st.Players[0].Liked {
		t.Error("like event lost")
	}
	if st.Muted {
		t.Error("mute event lost")
	}
	if st.Players[0].SlideIndex != 0 {
		t.Errorf("slide = %d, want 0 after reactivation reset", st.Players[0].SlideIndex)
	}
}

func TestSession_ApplyRejectsUnknown(t *testing.T) {
	s := newTestSession(1, 0)
	defer s.Close()

	if err := s.Apply(Event{Type: "teleport"}); err == nil {
		t.Error("expected error for unknown event type")
	}
	if err := s.Apply(Event{Type: "key", Key: "Enter"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSession_CloseStopsEvents(t *testing.T) {
	s := newTestSession(2, 0)
	s.Close()
	s.HandleKey(KeyDown)
	s.HandleScroll(800, 800)
	if got := s.ActiveIndex(); got != 0 {
		t.Errorf("closed session moved active to %d", got)
	}
	s.Close() // idempotent
}
