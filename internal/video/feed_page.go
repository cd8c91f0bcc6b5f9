package video

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/slide"
)

var feedPageTemplate = template.Must(template.New("feed").Funcs(template.FuncMap{
	"renderSlide": slide.Render,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Feed | ReelFeed</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        html, body { height: 100%; }
        body {
            background: #000;
            color: #fff;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
        }
        .feed {
            height: 100vh;
            overflow-y: scroll;
            scroll-snap-type: y mandatory;
        }
        .video-screen {
            height: 100vh;
            scroll-snap-align: start;
            position: relative;
        }
        .carousel {
            display: flex;
            height: 100%;
            overflow-x: scroll;
            scroll-snap-type: x mandatory;
        }
        .carousel-page {
            min-width: 100%;
            height: 100%;
            scroll-snap-align: start;
            display: flex;
            align-items: center;
            justify-content: center;
            padding: 2rem 1rem;
        }
        video { max-height: 100%; max-width: 100%; background: #000; }
        .overlay {
            position: absolute;
            bottom: 2rem;
            left: 1rem;
            right: 4rem;
            pointer-events: none;
        }
        .overlay h2 { font-size: 1.125rem; font-weight: 600; }
        .overlay .meta { margin-top: 0.25rem; color: #94a3b8; font-size: 0.8125rem; }
        .category {
            display: inline-block;
            background: rgba(255, 255, 255, 0.15);
            border-radius: 9999px;
            padding: 0.125rem 0.625rem;
            font-size: 0.6875rem;
            text-transform: uppercase;
            letter-spacing: 0.05em;
        }
        .slide { max-width: 420px; width: 100%; }
        .slide-heading { font-size: 1.25rem; margin-bottom: 1rem; }
        .slide-fallback-type { color: #64748b; font-size: 0.75rem; text-transform: uppercase; }
        .slide-fallback-dump {
            margin-top: 0.75rem;
            background: #0f172a;
            border-radius: 8px;
            padding: 0.75rem;
            font-size: 0.75rem;
            overflow-x: auto;
            white-space: pre-wrap;
        }
        .empty {
            height: 100vh;
            display: flex;
            flex-direction: column;
            align-items: center;
            justify-content: center;
            gap: 1rem;
        }
        .empty a { color: #3b82f6; text-decoration: none; }
    </style>
</head>
<body>
{{if .Videos}}
<div class="feed">
{{range .Videos}}
    <section class="video-screen" data-video-id="{{.ID}}">
        <div class="carousel">
            <div class="carousel-page">
                <video src="{{.SourceURL}}" {{if .Thumbnail}}poster="{{.Thumbnail}}"{{end}} muted playsinline loop></video>
            </div>
{{range .Slides}}
            <div class="carousel-page">
                {{if .Title}}<h2 class="slide-heading">{{.Title}}</h2>{{end}}
                {{renderSlide .}}
            </div>
{{end}}
        </div>
        <div class="overlay">
            <span class="category">{{.Category}}</span>
            <h2>{{.Title}}</h2>
            <p class="meta">{{.SourceName}} · {{.Timestamp}}</p>
        </div>
    </section>
{{end}}
</div>
{{else}}
<div class="empty">
    <h1>No videos yet</h1>
    <p>Once your sources are scraped, published videos show up here.</p>
    <a href="/">Back to dashboard</a>
</div>
{{end}}
</body>
</html>`))

type feedPageData struct {
	Videos []feed.Video
}

// FeedPage serves GET /feed: the server-rendered vertical feed with one
// horizontal slide carousel per video, or the empty state when nothing
// is published.
func (h *Handler) FeedPage(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && !categories[category] {
		http.NotFound(w, r)
		return
	}

	videos, err := h.FeedVideos(r.Context(), category, 0, 1)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := feedPageTemplate.Execute(w, feedPageData{Videos: videos}); err != nil {
		slog.Error("failed to render feed page", "error", err)
	}
}
