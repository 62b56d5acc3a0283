package friches

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

var errBadQuery = errors.New("bad query")

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeGeoJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/geo+json")
	_ = json.NewEncoder(w).Encode(v)
}

func addServerTiming(w http.ResponseWriter, name string, since time.Time) {
	ms := float64(time.Since(since).Microseconds()) / 1000
	w.Header().Add("Server-Timing", fmt.Sprintf("%s;dur=%.1f", name, ms))
}

// ParseFilter reads the filter from query parameters. A missing status
// parameter keeps every box checked; "status=" unchecks them all.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		EPCI:         strings.TrimSpace(q.Get("epci")),
		Municipality: strings.TrimSpace(q.Get("commune")),
		SiteID:       strings.TrimSpace(q.Get("site")),
	}

	var err error
	if f.SurfaceMin, err = parseBound(q, "surface_min"); err != nil {
		return Filter{}, err
	}
	if f.SurfaceMax, err = parseBound(q, "surface_max"); err != nil {
		return Filter{}, err
	}

	if values, ok := q["status"]; ok {
		f.Statuses = map[Status]bool{}
		for _, v := range values {
			for _, part := range strings.Split(v, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				s := ParseStatus(part)
				if !s.Known() {
					return Filter{}, fmt.Errorf("%w: unknown status %q", errBadQuery, part)
				}
				f.Statuses[s] = true
			}
		}
	}
	return f, nil
}

func parseBound(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a number", errBadQuery, key)
	}
	return &v, nil
}

// handler binds the HTTP surface to a Service.
type handler struct {
	svc *Service
}

// catalogAndFilter resolves the published catalog and the request filter,
// writing the error response itself when either fails.
func (h handler) catalogAndFilter(w http.ResponseWriter, r *http.Request) (*Catalog, Filter, bool) {
	c, err := h.svc.Catalog()
	if err != nil {
		http.Error(w, "Dataset not loaded", http.StatusServiceUnavailable)
		return nil, Filter{}, false
	}
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, Filter{}, false
	}
	return c, f.Normalize(c), true
}

func (h handler) ListSites(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.catalogAndFilter(w, r)
	if !ok {
		return
	}
	writeJSON(w, c.Visible(f))
}

func (h handler) GetSite(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Catalog()
	if err != nil {
		http.Error(w, "Dataset not loaded", http.StatusServiceUnavailable)
		return
	}
	site, err := c.Site(chi.URLParam(r, "id"))
	if errors.Is(err, ErrSiteNotFound) {
		http.Error(w, "Site not found", http.StatusNotFound)
		return
	}
	writeJSON(w, site)
}

func (h handler) SitesGeoJSON(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.catalogAndFilter(w, r)
	if !ok {
		return
	}
	writeGeoJSON(w, c.Points(f))
}

func (h handler) Markers(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.catalogAndFilter(w, r)
	if !ok {
		return
	}
	start := time.Now()
	set := c.Markers(f)
	addServerTiming(w, "filter", start)
	writeJSON(w, set)
}

func (h handler) Options(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.catalogAndFilter(w, r)
	if !ok {
		return
	}
	writeJSON(w, c.Options(f))
}

func (h handler) Stats(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.catalogAndFilter(w, r)
	if !ok {
		return
	}
	writeJSON(w, c.Stats(f))
}

func (h handler) ParcelOverlay(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.catalogAndFilter(w, r)
	if !ok {
		return
	}
	writeGeoJSON(w, c.Parcels(f))
}

func (h handler) RegionOverlay(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Catalog()
	if err != nil {
		http.Error(w, "Dataset not loaded", http.StatusServiceUnavailable)
		return
	}
	if !c.HasRegion() {
		http.Error(w, ErrOverlayUnavailable.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeGeoJSON(w, c.Region().FeatureCollection())
}

type reloadResponse struct {
	Sites    int        `json:"sites"`
	Parcels  int        `json:"parcels"`
	Region   bool       `json:"region"`
	Report   LoadReport `json:"report"`
	LoadedAt time.Time  `json:"loaded_at"`
}

func (h handler) Reload(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Reload(r.Context())
	if err != nil {
		http.Error(w, "Reload failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, reloadResponse{
		Sites:    c.Len(),
		Parcels:  c.ParcelCount(),
		Region:   c.HasRegion(),
		Report:   c.Report(),
		LoadedAt: c.LoadedAt(),
	})
}
