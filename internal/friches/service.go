package friches

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrNotLoaded = errors.New("dataset not loaded")

// Service publishes the current catalog. Requests read it without locking;
// Reload builds a new one and swaps it in, so a request never sees a
// half-built collection.
type Service struct {
	source   SiteSource
	overlays OverlaySources
	opener   *Opener

	current  atomic.Pointer[Catalog]
	reloadMu sync.Mutex
}

func NewService(source SiteSource, overlays OverlaySources, opener *Opener) *Service {
	return &Service{source: source, overlays: overlays, opener: opener}
}

// NewStaticService serves a prebuilt catalog. Reload is refused.
func NewStaticService(c *Catalog) *Service {
	s := &Service{}
	s.current.Store(c)
	return s
}

// Catalog returns the published catalog.
func (s *Service) Catalog() (*Catalog, error) {
	c := s.current.Load()
	if c == nil {
		return nil, ErrNotLoaded
	}
	return c, nil
}

// Reload loads the dataset again. On failure the previous catalog stays
// published.
func (s *Service) Reload(ctx context.Context) (*Catalog, error) {
	if s.source == nil {
		return nil, errors.New("no source configured")
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	c, err := LoadCatalog(ctx, s.source, s.overlays, s.opener)
	if err != nil {
		logError("reload", err)
		return nil, err
	}
	s.current.Store(c)
	return c, nil
}
