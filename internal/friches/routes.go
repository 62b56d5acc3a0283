package friches

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the read API. The reload route only exists when an
// admin guard is supplied.
func SetupRoutes(svc *Service, adminGuard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := handler{svc: svc}

	r.Get("/sites", h.ListSites)
	r.Get("/sites.geojson", h.SitesGeoJSON)
	r.Get("/sites/{id}", h.GetSite)
	r.Get("/markers", h.Markers)
	r.Get("/options", h.Options)
	r.Get("/stats", h.Stats)
	r.Get("/overlays/parcels", h.ParcelOverlay)
	r.Get("/overlays/region", h.RegionOverlay)

	if adminGuard != nil {
		r.Group(func(r chi.Router) {
			r.Use(adminGuard)
			r.Post("/admin/reload", h.Reload)
		})
	}

	return r
}
