package friches

import (
	"errors"
	"strings"
	"testing"
)

func optionValues(opts []Option) string {
	vals := make([]string, len(opts))
	for i, o := range opts {
		vals[i] = o.Value
	}
	return strings.Join(vals, "|")
}

func TestOptionsForAll(t *testing.T) {
	c := sampleCatalog(t)
	opts := c.Options(Filter{})

	if opts.EPCI != AllValue || opts.Municipality != AllValue || opts.SiteID != AllValue {
		t.Errorf("expected every dropdown on all, got %+v", opts)
	}
	if got := optionValues(opts.EPCIs); got != "CA Ardenne Métropole|CC Ardennes Thiérache" {
		t.Errorf("unexpected groups %s", got)
	}
	if got := optionValues(opts.Municipalities); got != "Charleville-Mézières|Rocroi|Sedan|Signy-l'Abbaye" {
		t.Errorf("unexpected municipalities %s", got)
	}
	if len(opts.Sites) != 5 {
		t.Errorf("expected 5 sites, got %d", len(opts.Sites))
	}
	if opts.SurfaceMin == nil || *opts.SurfaceMin != 800 || opts.SurfaceMax == nil || *opts.SurfaceMax != 12500 {
		t.Errorf("unexpected surface range %v..%v", opts.SurfaceMin, opts.SurfaceMax)
	}
	for _, o := range opts.Municipalities {
		if o.Value == "Sedan" && o.Count != 2 {
			t.Errorf("expected Sedan count 2, got %d", o.Count)
		}
	}
}

func TestSelectingEPCIRepopulatesMunicipalities(t *testing.T) {
	c := sampleCatalog(t)

	opts := c.Options(Filter{}.WithEPCI("CC Ardennes Thiérache"))
	if got := optionValues(opts.Municipalities); got != "Rocroi|Signy-l'Abbaye" {
		t.Errorf("unexpected municipalities %s", got)
	}
	if got := optionValues(opts.Sites); got != "F5|F4" {
		t.Errorf("expected sites sorted by name (Dépôt, Scierie), got %s", got)
	}
	if len(opts.EPCIs) != 2 {
		t.Errorf("group list must not narrow itself, got %d", len(opts.EPCIs))
	}

	// back to "all" restores the full downstream lists
	all := c.Options(Filter{}.WithEPCI("CC Ardennes Thiérache").WithEPCI(AllValue))
	if len(all.Municipalities) != 4 || len(all.Sites) != 5 {
		t.Errorf("expected full lists after reselecting all, got %d municipalities %d sites",
			len(all.Municipalities), len(all.Sites))
	}
}

func TestOptionsIgnoreSurfaceAndStatus(t *testing.T) {
	c := sampleCatalog(t)
	f := Filter{Statuses: map[Status]bool{}}.WithSurface(ptr(1e9), nil)
	opts := c.Options(f)
	if len(opts.Municipalities) != 4 || len(opts.Sites) != 5 {
		t.Errorf("dropdowns must not depend on surface or status, got %d/%d",
			len(opts.Municipalities), len(opts.Sites))
	}
}

func TestOptionsNormalizeStaleSelection(t *testing.T) {
	c := sampleCatalog(t)
	opts := c.Options(Filter{EPCI: "CC Ardennes Thiérache", Municipality: "Sedan"})
	if opts.Municipality != AllValue {
		t.Errorf("expected stale municipality to fall back to all, got %q", opts.Municipality)
	}
}

func TestOptionsSkipBlankValues(t *testing.T) {
	c := NewCatalog([]Site{
		{ID: "a", Name: "A", Municipality: "Givet", Lat: 50, Lng: 4},
		{ID: "b", Name: "B", EPCI: "CC X", Lat: 50, Lng: 4},
	}, nil, nil)
	opts := c.Options(Filter{})
	if got := optionValues(opts.EPCIs); got != "CC X" {
		t.Errorf("unexpected groups %s", got)
	}
	if got := optionValues(opts.Municipalities); got != "Givet" {
		t.Errorf("unexpected municipalities %s", got)
	}
}

func TestMarkersBounds(t *testing.T) {
	c := sampleCatalog(t)
	set := c.Markers(Filter{})
	if set.Bounds == nil {
		t.Fatal("expected bounds")
	}
	b := *set.Bounds
	if b.MinLat != 49.70 || b.MaxLat != 49.92 || b.MinLng != 4.42 || b.MaxLng != 4.95 {
		t.Errorf("unexpected bounds %+v", b)
	}

	one := c.Markers(Filter{}.WithSite("F4"))
	if one.Bounds == nil || one.Bounds.MinLat != 49.92 || one.Bounds.MaxLat != 49.92 {
		t.Errorf("unexpected single-site bounds %+v", one.Bounds)
	}
	for _, m := range one.Markers {
		if m.Color == "" {
			t.Errorf("marker %s has no color", m.SiteID)
		}
	}
}

func TestMarkersDoNotMutateCatalog(t *testing.T) {
	c := sampleCatalog(t)
	c.Markers(Filter{})
	for _, m := range c.markers {
		if m.Visible {
			t.Fatalf("prebuilt marker %s was modified", m.SiteID)
		}
	}
}

func TestStats(t *testing.T) {
	c := sampleCatalog(t)
	st := c.Stats(Filter{}.WithStatus(StatusPotential, false))
	if st.Total != 5 || st.Visible != 4 {
		t.Errorf("unexpected totals %d/%d", st.Visible, st.Total)
	}
	if len(st.ByStatus) != 5 {
		t.Fatalf("expected a row per known status plus unknown, got %d", len(st.ByStatus))
	}
	first := st.ByStatus[0]
	if first.Status != StatusPotential || first.Visible != 0 || first.Total != 1 || first.Color != "#f0a30a" {
		t.Errorf("unexpected legend row %+v", first)
	}

	clean := NewCatalog([]Site{{ID: "a", Status: StatusConverted, Lat: 1, Lng: 1}}, nil, nil)
	if n := len(clean.Stats(Filter{}).ByStatus); n != 4 {
		t.Errorf("unknown row should be omitted when absent, got %d rows", n)
	}
}

func TestSiteLookup(t *testing.T) {
	c := sampleCatalog(t)
	s, err := c.Site("F3")
	if err != nil || s.Name != "Gare de marchandises" {
		t.Fatalf("unexpected site %+v, err %v", s, err)
	}
	if _, err := c.Site("missing"); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestNewCatalogDeduplicates(t *testing.T) {
	c := NewCatalog([]Site{
		{ID: "a", Name: "first", Lat: 1, Lng: 1},
		{ID: "a", Name: "second", Lat: 1, Lng: 1},
	}, nil, nil)
	if c.Len() != 1 {
		t.Fatalf("expected 1 site, got %d", c.Len())
	}
	if s, _ := c.Site("a"); s.Name != "first" {
		t.Errorf("expected the first row to win, got %q", s.Name)
	}
}

func TestPointCollection(t *testing.T) {
	c := sampleCatalog(t)
	fc := c.Points(Filter{}.WithEPCI("CC Ardennes Thiérache"))
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	f := fc.Features[0]
	if f.ID != "F4" || f.Properties["status"] != string(StatusConverted) {
		t.Errorf("unexpected feature %+v", f)
	}
	if _, ok := f.Properties["surface"]; ok {
		t.Errorf("unknown surface should be left out")
	}
	coords := f.Geometry.FlatCoords()
	if coords[0] != 4.52 || coords[1] != 49.92 {
		t.Errorf("expected lng,lat order, got %v", coords)
	}
}
