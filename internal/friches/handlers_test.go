package friches

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func passthrough(next http.Handler) http.Handler { return next }

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, rr.Body.String())
	}
}

func sampleRoutes(t *testing.T) http.Handler {
	t.Helper()
	return SetupRoutes(NewStaticService(sampleCatalog(t)), nil)
}

func TestParseFilter(t *testing.T) {
	q := url.Values{
		"epci":        {"CA Ardenne Métropole"},
		"commune":     {"Sedan"},
		"site":        {"all"},
		"surface_min": {"1000,5"},
		"status":      {"potential, friche sans projet", "converted"},
	}
	f, err := ParseFilter(q)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if f.EPCI != "CA Ardenne Métropole" || f.Municipality != "Sedan" || f.SiteID != "all" {
		t.Errorf("unexpected selection %+v", f)
	}
	if f.SurfaceMin == nil || *f.SurfaceMin != 1000.5 || f.SurfaceMax != nil {
		t.Errorf("unexpected surface bounds %v %v", f.SurfaceMin, f.SurfaceMax)
	}
	if !f.StatusChecked(StatusPotential) || !f.StatusChecked(StatusWithoutProject) ||
		!f.StatusChecked(StatusConverted) || f.StatusChecked(StatusWithProject) {
		t.Errorf("unexpected statuses %+v", f.Statuses)
	}
}

func TestParseFilterStatusPresence(t *testing.T) {
	f, _ := ParseFilter(url.Values{})
	if f.Statuses != nil {
		t.Errorf("absent status should keep every box checked")
	}
	f, _ = ParseFilter(url.Values{"status": {""}})
	if f.Statuses == nil || len(f.Statuses) != 0 {
		t.Errorf("empty status should uncheck every box, got %+v", f.Statuses)
	}
}

func TestParseFilterErrors(t *testing.T) {
	for _, q := range []url.Values{
		{"surface_min": {"abc"}},
		{"surface_max": {"12m2"}},
		{"status": {"demolished"}},
		{"surface_min": {"NaN"}},
		{"surface_max": {"Inf"}},
		{"surface_min": {"-Inf"}},
	} {
		if _, err := ParseFilter(q); err == nil {
			t.Errorf("expected an error for %v", q)
		}
	}
}

func TestMarkersHandler(t *testing.T) {
	h := sampleRoutes(t)
	rr := get(t, h, "/markers?status=potential,converted")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Server-Timing") == "" {
		t.Errorf("expected a Server-Timing header")
	}
	var set MarkerSet
	decode(t, rr, &set)
	if set.Total != 5 || set.Visible != 3 {
		t.Errorf("expected 3 of 5 visible (F1, F4 and the unknown F5), got %d of %d", set.Visible, set.Total)
	}
}

func TestMarkersHandlerBadSurface(t *testing.T) {
	rr := get(t, sampleRoutes(t), "/markers?surface_min=abc")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSitesHandlers(t *testing.T) {
	h := sampleRoutes(t)

	rr := get(t, h, "/sites?commune=Sedan")
	var sites []Site
	decode(t, rr, &sites)
	if len(sites) != 2 {
		t.Errorf("expected 2 sites in Sedan, got %d", len(sites))
	}

	rr = get(t, h, "/sites/F2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var site Site
	decode(t, rr, &site)
	if site.Name != "Usine Dupont" {
		t.Errorf("unexpected site %+v", site)
	}

	if rr := get(t, h, "/sites/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}

	rr = get(t, h, "/sites.geojson?surface_max=1000")
	if ct := rr.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	decode(t, rr, &fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Errorf("expected one feature (F3), got %s with %d", fc.Type, len(fc.Features))
	}
}

func TestOptionsHandler(t *testing.T) {
	rr := get(t, sampleRoutes(t), "/options?epci="+url.QueryEscape("CC Ardennes Thiérache"))
	var opts Options
	decode(t, rr, &opts)
	if got := optionValues(opts.Municipalities); got != "Rocroi|Signy-l'Abbaye" {
		t.Errorf("unexpected municipalities %s", got)
	}
}

func TestStaleCommuneFallsBackEverywhere(t *testing.T) {
	h := sampleRoutes(t)
	q := "?epci=" + url.QueryEscape("CC Ardennes Thiérache") + "&commune=Sedan"

	var opts Options
	decode(t, get(t, h, "/options"+q), &opts)
	if opts.Municipality == "Sedan" {
		t.Fatalf("Sedan is not in the selected EPCI and should not stay selected")
	}

	var set MarkerSet
	decode(t, get(t, h, "/markers"+q), &set)
	if set.Visible != 2 {
		t.Errorf("expected the two Thiérache sites (F4, F5), got %d visible", set.Visible)
	}

	var st Stats
	decode(t, get(t, h, "/stats"+q), &st)
	if st.Visible != set.Visible {
		t.Errorf("stats and markers disagree: %d vs %d", st.Visible, set.Visible)
	}
}

func TestStatsHandler(t *testing.T) {
	rr := get(t, sampleRoutes(t), "/stats?status=")
	var st Stats
	decode(t, rr, &st)
	if st.Visible != 1 {
		t.Errorf("expected only the unknown-status site with every box unchecked, got %d", st.Visible)
	}
}

func TestOverlayHandlers(t *testing.T) {
	h := sampleRoutes(t)
	if rr := get(t, h, "/overlays/region"); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a region, got %d", rr.Code)
	}
	rr := get(t, h, "/overlays/parcels")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"features":[]`) {
		t.Errorf("expected an empty collection, got %s", rr.Body.String())
	}
}

func TestReloadRouteNeedsGuard(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	rr := httptest.NewRecorder()
	sampleRoutes(t).ServeHTTP(rr, req)
	if rr.Code == http.StatusOK {
		t.Fatalf("reload must not be reachable without a guard")
	}
}

func TestNotLoaded(t *testing.T) {
	h := SetupRoutes(NewService(nil, OverlaySources{}, nil), nil)
	if rr := get(t, h, "/markers"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}

func TestReloadWithFailedOverlays(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "friches.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	badRegion := filepath.Join(dir, "region.geojson")
	if err := os.WriteFile(badRegion, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer down.Close()

	svc := NewService(
		&CSVSource{Location: csvPath},
		OverlaySources{Parcels: down.URL + "/parcels.geojson", Region: badRegion, JoinKey: "site_id"},
		NewOpener(0),
	)
	h := SetupRoutes(svc, passthrough)

	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp reloadResponse
	decode(t, rr, &resp)
	if resp.Sites != 5 || resp.Parcels != 0 || resp.Region {
		t.Errorf("unexpected reload summary %+v", resp)
	}

	rr = get(t, h, "/markers")
	var set MarkerSet
	decode(t, rr, &set)
	if set.Total != 5 {
		t.Errorf("markers should load despite broken overlays, got %d", set.Total)
	}
}

func TestReloadFromHTTPWithOverlays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/friches.csv":
			w.Write([]byte(sampleCSV))
		case "/parcels.geojson", "/region.geojson":
			w.Write([]byte(parcelsGeoJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc := NewService(
		&CSVSource{Location: srv.URL + "/friches.csv"},
		OverlaySources{Parcels: srv.URL + "/parcels.geojson", Region: srv.URL + "/region.geojson", JoinKey: "site_id"},
		NewOpener(0),
	)
	c, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if c.ParcelCount() != 2 || !c.HasRegion() {
		t.Errorf("expected parcels and region loaded, got %d parcels region=%v", c.ParcelCount(), c.HasRegion())
	}

	h := SetupRoutes(svc, nil)
	if rr := get(t, h, "/overlays/region"); rr.Code != http.StatusOK {
		t.Errorf("expected region served, got %d", rr.Code)
	}
}

func TestReloadKeepsPreviousCatalogOnFailure(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "friches.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := NewService(&CSVSource{Location: csvPath}, OverlaySources{}, nil)
	first, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if err := os.Remove(csvPath); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Reload(context.Background()); err == nil {
		t.Fatal("expected reload to fail once the file is gone")
	}
	cur, err := svc.Catalog()
	if err != nil || cur != first {
		t.Errorf("expected the previous catalog to stay published")
	}
}
