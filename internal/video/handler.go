// Package video is the persistence-facing side of the feed: owner CRUD
// over scraped videos, the published-feed query and projection, view
// recording with visitor analytics, and the feed session API.
package video

import (
	"context"
	"time"

	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/geoip"
)

type ObjectStorage interface {
	PublicURL(key string) string
	GenerateUploadURL(ctx context.Context, key string, contentType string, contentLength int64, expiry time.Duration) (string, error)
	HeadObject(ctx context.Context, key string) (int64, string, error)
	DeleteObject(ctx context.Context, key string) error
}

// Categories accepted for videos and sources. "all" is a catch-all that
// the feed projects as "tech".
var categories = map[string]bool{
	"all":           true,
	"tech":          true,
	"politics":      true,
	"science":       true,
	"business":      true,
	"sports":        true,
	"entertainment": true,
	"health":        true,
}

type Handler struct {
	db       database.DBTX
	storage  ObjectStorage
	geo      *geoip.Locator
	sessions *sessionStore
}

func NewHandler(db database.DBTX, s ObjectStorage, geo *geoip.Locator) *Handler {
	return &Handler{
		db:       db,
		storage:  s,
		geo:      geo,
		sessions: newSessionStore(defaultSessionTTL),
	}
}

// Close stops background session cleanup.
func (h *Handler) Close() {
	h.sessions.close()
}
