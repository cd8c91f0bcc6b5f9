// Package slide holds the slide content model: a closed tagged union of
// slide variants attached to a video, the JSON decoder for the stored
// deck, and a pure HTML renderer dispatched on the type discriminator.
package slide

import (
	"encoding/json"
	"fmt"

	"github.com/reelfeed/reelfeed/internal/validate"
)

const (
	TypeList       = "list"
	TypeMetrics    = "metrics"
	TypeText       = "text"
	TypeAction     = "action"
	TypeQuote      = "quote"
	TypeComparison = "comparison"
	TypeTimeline   = "timeline"
)

// Slide is one deck entry. Type is the discriminator; Content holds the
// decoded variant payload, or Fallback when the type is unknown or its
// payload does not match the variant shape.
type Slide struct {
	ID      string
	Type    string
	Title   string
	Content Content
}

// Content is implemented by exactly the known variant payloads plus
// Fallback. Routing is always on Slide.Type, never on payload shape.
type Content interface {
	variant()
}

type ListItem struct {
	Title     string `json:"title"`
	Detail    string `json:"detail,omitempty"`
	Icon      string `json:"icon,omitempty"`
	IconColor string `json:"iconColor,omitempty"`
}

type List struct {
	Heading string     `json:"heading,omitempty"`
	Items   []ListItem `json:"items"`
	Layout  string     `json:"layout,omitempty"` // "", "vertical" or "grid"
}

type Metric struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	Change string `json:"change,omitempty"`
	Trend  string `json:"trend,omitempty"` // "up", "down" or "neutral"
}

type Metrics struct {
	Heading string   `json:"heading,omitempty"`
	Metrics []Metric `json:"metrics"`
	Columns int      `json:"columns,omitempty"` // 2, 3 or 4; 0 means auto
}

type Text struct {
	Heading   string `json:"heading,omitempty"`
	Body      string `json:"body"`
	Callout   string `json:"callout,omitempty"`
	Highlight string `json:"highlight,omitempty"` // "default", "gradient" or "minimal"
}

type CallToAction struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type Action struct {
	Heading string        `json:"heading,omitempty"`
	Actions []string      `json:"actions,omitempty"`
	CTA     *CallToAction `json:"cta,omitempty"`
}

type Quote struct {
	Quote   string `json:"quote"`
	Author  string `json:"author,omitempty"`
	Context string `json:"context,omitempty"`
}

type ComparisonSide struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Detail string `json:"detail,omitempty"`
}

type Comparison struct {
	Heading string         `json:"heading,omitempty"`
	Before  ComparisonSide `json:"before"`
	After   ComparisonSide `json:"after"`
	Context string         `json:"context,omitempty"`
}

type TimelineEvent struct {
	Date        string `json:"date,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Timeline struct {
	Heading string          `json:"heading,omitempty"`
	Events  []TimelineEvent `json:"events"`
}

// Fallback carries the raw payload of an unknown or malformed slide so
// the renderer can show it for diagnostics.
type Fallback struct {
	Raw json.RawMessage
}

func (List) variant()       {}
func (Metrics) variant()    {}
func (Text) variant()       {}
func (Action) variant()     {}
func (Quote) variant()      {}
func (Comparison) variant() {}
func (Timeline) variant()   {}
func (Fallback) variant()   {}

type envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Title   string          `json:"title,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// DecodeDeck parses a stored slide deck. Unknown slide types are not an
// error; they decode to Fallback content. A known type whose payload
// fails to parse also falls back rather than failing the whole deck.
func DecodeDeck(data []byte) ([]Slide, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []envelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode slide deck: %w", err)
	}
	slides := make([]Slide, 0, len(raw))
	for _, env := range raw {
		slides = append(slides, decodeOne(env))
	}
	return slides, nil
}

func decodeOne(env envelope) Slide {
	s := Slide{ID: env.ID, Type: env.Type, Title: env.Title}

	var target Content
	switch env.Type {
	case TypeList:
		target = &List{}
	case TypeMetrics:
		target = &Metrics{}
	case TypeText:
		target = &Text{}
	case TypeAction:
		target = &Action{}
	case TypeQuote:
		target = &Quote{}
	case TypeComparison:
		target = &Comparison{}
	case TypeTimeline:
		target = &Timeline{}
	default:
		s.Content = Fallback{Raw: env.Content}
		return s
	}

	if len(env.Content) > 0 {
		if err := json.Unmarshal(env.Content, target); err != nil {
			s.Content = Fallback{Raw: env.Content}
			return s
		}
	}
	s.Content = deref(target)
	return s
}

func deref(c Content) Content {
	switch v := c.(type) {
	case *List:
		return *v
	case *Metrics:
		return *v
	case *Text:
		return *v
	case *Action:
		return *v
	case *Quote:
		return *v
	case *Comparison:
		return *v
	case *Timeline:
		return *v
	}
	return c
}

// EncodeDeck is the inverse of DecodeDeck for the CRUD surface.
func EncodeDeck(slides []Slide) ([]byte, error) {
	raw := make([]envelope, 0, len(slides))
	for _, s := range slides {
		env := envelope{ID: s.ID, Type: s.Type, Title: s.Title}
		switch c := s.Content.(type) {
		case Fallback:
			env.Content = c.Raw
		case nil:
		default:
			b, err := json.Marshal(c)
			if err != nil {
				return nil, fmt.Errorf("encode slide %s: %w", s.ID, err)
			}
			env.Content = b
		}
		raw = append(raw, env)
	}
	return json.Marshal(raw)
}

// ValidateDeck checks a deck before it is stored: ids unique within the
// deck, per-type required fields present, enum fields in range. Unknown
// types are accepted as-is.
func ValidateDeck(slides []Slide) error {
	seen := make(map[string]bool, len(slides))
	for i, s := range slides {
		if s.ID == "" {
			return fmt.Errorf("slide %d: missing id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("slide %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if s.Type == "" {
			return fmt.Errorf("slide %q: missing type", s.ID)
		}
		if len(s.Title) > validate.MaxSlideHeadingLength {
			return fmt.Errorf("slide %q: title too long", s.ID)
		}
		if err := validateContent(s); err != nil {
			return fmt.Errorf("slide %q: %w", s.ID, err)
		}
	}
	return nil
}

func validateContent(s Slide) error {
	switch c := s.Content.(type) {
	case List:
		if c.Layout != "" && c.Layout != "vertical" && c.Layout != "grid" {
			return fmt.Errorf("invalid layout %q", c.Layout)
		}
		for i, item := range c.Items {
			if item.Title == "" {
				return fmt.Errorf("item %d: missing title", i)
			}
		}
	case Metrics:
		switch c.Columns {
		case 0, 2, 3, 4:
		default:
			return fmt.Errorf("invalid column count %d", c.Columns)
		}
		for i, m := range c.Metrics {
			if m.Value == "" || m.Label == "" {
				return fmt.Errorf("metric %d: value and label are required", i)
			}
			switch m.Trend {
			case "", "up", "down", "neutral":
			default:
				return fmt.Errorf("metric %d: invalid trend %q", i, m.Trend)
			}
		}
	case Text:
		if c.Body == "" {
			return fmt.Errorf("missing body")
		}
		if len(c.Body) > validate.MaxSlideBodyLength {
			return fmt.Errorf("body too long")
		}
		switch c.Highlight {
		case "", "default", "gradient", "minimal":
		default:
			return fmt.Errorf("invalid highlight %q", c.Highlight)
		}
	case Action:
		if c.CTA != nil && (c.CTA.Text == "" || c.CTA.URL == "") {
			return fmt.Errorf("cta requires text and url")
		}
	case Quote:
		if c.Quote == "" {
			return fmt.Errorf("missing quote text")
		}
	case Comparison:
		if c.Before.Label == "" || c.Before.Value == "" {
			return fmt.Errorf("before requires label and value")
		}
		if c.After.Label == "" || c.After.Value == "" {
			return fmt.Errorf("after requires label and value")
		}
	case Timeline:
		for i, e := range c.Events {
			if e.Title == "" {
				return fmt.Errorf("event %d: missing title", i)
			}
		}
	}
	return nil
}
