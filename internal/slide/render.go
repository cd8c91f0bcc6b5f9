package slide

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
)

// Render maps one slide to its HTML presentation, dispatched on Type.
// It is pure and total: unknown types and malformed payloads get the
// generic fallback, which shows the literal type string, the title if
// present, and a JSON dump of the content. It never returns an error.
func Render(s Slide) template.HTML {
	var b strings.Builder
	var err error
	switch s.Type {
	case TypeList:
		c, ok := s.Content.(List)
		if !ok {
			return renderFallback(s)
		}
		err = tmpl.ExecuteTemplate(&b, "list", listView{Slide: s, List: c})
	case TypeMetrics:
		c, ok := s.Content.(Metrics)
		if !ok {
			return renderFallback(s)
		}
		err = tmpl.ExecuteTemplate(&b, "metrics", metricsView{Slide: s, Metrics: c, Columns: columnsOrDefault(c)})
	case TypeText:
		c, ok := s.Content.(Text)
		if !ok {
			return renderFallback(s)
		}
		err = tmpl.ExecuteTemplate(&b, "text", textView{Slide: s, Text: c, Highlight: highlightOrDefault(c)})
	case TypeAction:
		c, ok := s.Content.(Action)
		if !ok {
			return renderFallback(s)
		}
		err = tmpl.ExecuteTemplate(&b, "action", actionView{Slide: s, Action: c})
	case TypeQuote:
		c, ok := s.Content.(Quote)
		if !ok {
			return renderFallback(s)
		}
		err = tmpl.ExecuteTemplate(&b, "quote", quoteView{Slide: s, Quote: c})
	case TypeComparison:
		c, ok := s.Content.(Comparison)
		if !ok {
			return renderFallback(s)
		}
		err = tmpl.ExecuteTemplate(&b, "comparison", comparisonView{Slide: s, Comparison: c})
	case TypeTimeline:
		c, ok := s.Content.(Timeline)
		if !ok {
			return renderFallback(s)
		}
		err = tmpl.ExecuteTemplate(&b, "timeline", timelineView{Slide: s, Timeline: c})
	default:
		return renderFallback(s)
	}
	if err != nil {
		return renderFallback(s)
	}
	return template.HTML(b.String())
}

type listView struct {
	Slide Slide
	List
}

type metricsView struct {
	Slide Slide
	Metrics
	Columns int
}

type textView struct {
	Slide Slide
	Text
	Highlight string
}

type actionView struct {
	Slide Slide
	Action
}

type quoteView struct {
	Slide Slide
	Quote
}

type comparisonView struct {
	Slide Slide
	Comparison
}

type timelineView struct {
	Slide Slide
	Timeline
}

type fallbackView struct {
	Slide Slide
	Dump  string
}

func columnsOrDefault(c Metrics) int {
	if c.Columns == 0 {
		return 2
	}
	return c.Columns
}

func highlightOrDefault(c Text) string {
	if c.Highlight == "" {
		return "default"
	}
	return c.Highlight
}

func renderFallback(s Slide) template.HTML {
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, "fallback", fallbackView{Slide: s, Dump: contentDump(s.Content)}); err != nil {
		// The fallback template takes plain strings only, so execution
		// cannot fail; keep a minimal escape hatch anyway.
		return template.HTML("<div class=\"slide slide-fallback\">" + template.HTMLEscapeString(s.Type) + "</div>")
	}
	return template.HTML(b.String())
}

func contentDump(c Content) string {
	var v any
	switch t := c.(type) {
	case Fallback:
		if len(t.Raw) == 0 {
			return "null"
		}
		if err := json.Unmarshal(t.Raw, &v); err != nil {
			return string(t.Raw)
		}
	case nil:
		return "null"
	default:
		v = t
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

var tmpl = template.Must(template.New("slides").Funcs(template.FuncMap{
	"icon":      iconGlyph,
	"iconColor": iconColor,
}).Parse(`
{{define "heading"}}{{if .}}<h2 class="slide-heading">{{.}}</h2>{{end}}{{end}}

{{define "list"}}
<div class="slide slide-list{{if eq .Layout "grid"}} slide-list-grid{{end}}" data-slide-id="{{.Slide.ID}}">
{{template "heading" .Heading}}
<ul class="slide-list-items">
{{range .Items}}<li class="slide-list-item">
<span class="slide-icon" style="color: {{iconColor .IconColor}}">{{icon .Icon}}</span>
<div><span class="slide-item-title">{{.Title}}</span>{{if .Detail}}<span class="slide-item-detail">{{.Detail}}</span>{{end}}</div>
</li>
{{end}}</ul>
</div>
{{end}}

{{define "metrics"}}
<div class="slide slide-metrics" data-slide-id="{{.Slide.ID}}" style="--metric-columns: {{.Columns}}">
{{template "heading" .Heading}}
<div class="slide-metric-grid">
{{range .Metrics.Metrics}}<div class="slide-metric">
<span class="slide-metric-value">{{.Value}}</span>
<span class="slide-metric-label">{{.Label}}</span>
{{if .Change}}<span class="slide-metric-change slide-trend-{{if .Trend}}{{.Trend}}{{else}}neutral{{end}}">{{.Change}}</span>{{end}}
</div>
{{end}}</div>
</div>
{{end}}

{{define "text"}}
<div class="slide slide-text slide-text-{{.Highlight}}" data-slide-id="{{.Slide.ID}}">
{{template "heading" .Heading}}
<p class="slide-body">{{.Body}}</p>
{{if .Callout}}<div class="slide-callout">{{.Callout}}</div>{{end}}
</div>
{{end}}

{{define "action"}}
<div class="slide slide-action" data-slide-id="{{.Slide.ID}}">
{{template "heading" .Heading}}
{{if .Actions}}<ol class="slide-action-steps">
{{range .Actions}}<li>{{.}}</li>
{{end}}</ol>{{end}}
{{if .CTA}}<a class="slide-cta" href="{{.CTA.URL}}">{{.CTA.Text}}</a>{{end}}
</div>
{{end}}

{{define "quote"}}
<div class="slide slide-quote" data-slide-id="{{.Slide.ID}}">
<blockquote class="slide-quote-text">“{{.Quote.Quote}}”</blockquote>
{{if .Author}}<cite class="slide-quote-author">{{.Author}}</cite>{{end}}
{{if .Context}}<p class="slide-quote-context">{{.Context}}</p>{{end}}
</div>
{{end}}

{{define "comparison"}}
<div class="slide slide-comparison" data-slide-id="{{.Slide.ID}}">
{{template "heading" .Heading}}
<div class="slide-comparison-sides">
<div class="slide-comparison-before">
<span class="slide-comparison-label">{{.Before.Label}}</span>
<span class="slide-comparison-value">{{.Before.Value}}</span>
{{if .Before.Detail}}<span class="slide-comparison-detail">{{.Before.Detail}}</span>{{end}}
</div>
<span class="slide-comparison-arrow">→</span>
<div class="slide-comparison-after">
<span class="slide-comparison-label">{{.After.Label}}</span>
<span class="slide-comparison-value">{{.After.Value}}</span>
{{if .After.Detail}}<span class="slide-comparison-detail">{{.After.Detail}}</span>{{end}}
</div>
</div>
{{if .Context}}<p class="slide-comparison-context">{{.Context}}</p>{{end}}
</div>
{{end}}

{{define "timeline"}}
<div class="slide slide-timeline" data-slide-id="{{.Slide.ID}}">
{{template "heading" .Heading}}
<ol class="slide-timeline-events">
{{range .Events}}<li class="slide-timeline-event">
{{if .Date}}<span class="slide-timeline-date">{{.Date}}</span>{{end}}
<span class="slide-timeline-title">{{.Title}}</span>
{{if .Description}}<span class="slide-timeline-description">{{.Description}}</span>{{end}}
</li>
{{end}}</ol>
</div>
{{end}}

{{define "fallback"}}
<div class="slide slide-fallback" data-slide-id="{{.Slide.ID}}">
<span class="slide-fallback-type">{{.Slide.Type}}</span>
{{if .Slide.Title}}<h2 class="slide-heading">{{.Slide.Title}}</h2>{{end}}
<pre class="slide-fallback-dump">{{.Dump}}</pre>
</div>
{{end}}
`))
