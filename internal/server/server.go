// Package server turns a configuration into a running friches API: it picks
// the site source and assembles the router main.go listens with.
package server

import (
	"fmt"
	"net/http"

	"github.com/EmpoweredVote/friches-map/internal/config"
	"github.com/EmpoweredVote/friches-map/internal/db"
	"github.com/EmpoweredVote/friches-map/internal/friches"
	"github.com/EmpoweredVote/friches-map/internal/middleware"
	"github.com/EmpoweredVote/friches-map/internal/snapshot"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewSource returns the site source selected by cfg. The postgres source
// uses the shared db.DB, which must be connected first.
func NewSource(cfg *config.Config, opener *friches.Opener) (friches.SiteSource, error) {
	switch cfg.Source {
	case config.SourceCSV:
		return &friches.CSVSource{Location: cfg.DataPath, Delimiter: cfg.DelimiterRune(), Opener: opener}, nil
	case config.SourceSQLite:
		return &snapshot.Source{Path: cfg.SQLitePath}, nil
	case config.SourcePostgres:
		if db.DB == nil {
			return nil, fmt.Errorf("postgres source selected but no database connection")
		}
		return &friches.DBSource{DB: db.DB}, nil
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// Overlays returns the optional GeoJSON inputs configured.
func Overlays(cfg *config.Config) friches.OverlaySources {
	return friches.OverlaySources{
		Parcels: cfg.ParcelsGeoJSON,
		Region:  cfg.RegionGeoJSON,
		JoinKey: cfg.JoinKey,
	}
}

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "OK")
}

// NewRouter mounts the friches API under /friches behind the request
// middleware stack.
func NewRouter(cfg *config.Config, svc *friches.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/", RootHandler)
	r.Get("/health", HealthHandler)

	var guard func(http.Handler) http.Handler
	if cfg.AdminTokenHash != "" {
		guard = middleware.AdminToken(cfg.AdminTokenHash)
	}

	api := friches.SetupRoutes(svc, guard)
	if cfg.RateLimit > 0 {
		api = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst).Middleware(api)
	}
	r.Mount("/friches", api)

	return r
}
