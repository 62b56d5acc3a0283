package friches

import (
	"sort"
	"strings"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func sampleCatalog(t *testing.T) *Catalog {
	t.Helper()
	sites, report := parseSample(t)
	c := NewCatalog(sites, nil, nil)
	c.report = report
	return c
}

func visibleIDs(c *Catalog, f Filter) []string {
	var ids []string
	for _, m := range c.Markers(f).Markers {
		if m.Visible {
			ids = append(ids, m.SiteID)
		}
	}
	sort.Strings(ids)
	return ids
}

func TestZeroFilterShowsEverything(t *testing.T) {
	c := sampleCatalog(t)
	got := visibleIDs(c, Filter{})
	if strings.Join(got, ",") != "F1,F2,F3,F4,F5" {
		t.Fatalf("unexpected visible set %v", got)
	}
}

func TestTogglingStatusRemovesOnlyThatStatus(t *testing.T) {
	c := sampleCatalog(t)
	before := c.Markers(Filter{})

	for _, s := range KnownStatuses {
		f := Filter{}.WithStatus(s, false)
		after := c.Markers(f)
		for i, m := range after.Markers {
			if m.Status == s {
				if m.Visible {
					t.Errorf("%s: marker %s still visible after unchecking", s, m.SiteID)
				}
				continue
			}
			if m.Visible != before.Markers[i].Visible {
				t.Errorf("%s: marker %s changed visibility", s, m.SiteID)
			}
		}
		// checking it again restores the full set
		if back := c.Markers(f.WithStatus(s, true)); back.Visible != before.Visible {
			t.Errorf("%s: expected %d visible after re-checking, got %d", s, before.Visible, back.Visible)
		}
	}
}

func TestUnknownStatusIgnoresCheckboxes(t *testing.T) {
	c := sampleCatalog(t)
	got := visibleIDs(c, Filter{Statuses: map[Status]bool{}})
	if strings.Join(got, ",") != "F5" {
		t.Fatalf("expected only the unknown-status site, got %v", got)
	}
}

func TestEmptySurfaceIntervalHidesEverything(t *testing.T) {
	c := sampleCatalog(t)
	set := c.Markers(Filter{}.WithSurface(ptr(5000), ptr(100)))
	if set.Visible != 0 {
		t.Fatalf("expected no visible marker, got %d", set.Visible)
	}
	if set.Bounds != nil {
		t.Errorf("expected nil bounds, got %+v", set.Bounds)
	}
	if set.Total != 5 {
		t.Errorf("markers must still be returned, got %d", set.Total)
	}
}

func TestSurfaceRange(t *testing.T) {
	c := sampleCatalog(t)
	tests := []struct {
		name   string
		lo, hi *float64
		want   string
	}{
		{"unbounded", nil, nil, "F1,F2,F3,F4,F5"},
		{"min only drops unknown surface", ptr(0), nil, "F1,F2,F3,F5"},
		{"max only", nil, ptr(1500), "F3,F5"},
		{"inclusive bounds", ptr(800), ptr(3000), "F2,F3,F5"},
		{"single point", ptr(3000), ptr(3000), "F2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(visibleIDs(c, Filter{}.WithSurface(tt.lo, tt.hi)), ",")
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSelectionFilters(t *testing.T) {
	c := sampleCatalog(t)
	tests := []struct {
		name string
		f    Filter
		want string
	}{
		{"epci", Filter{}.WithEPCI("CC Ardennes Thiérache"), "F4,F5"},
		{"municipality", Filter{}.WithEPCI("CA Ardenne Métropole").WithMunicipality("Sedan"), "F1,F2"},
		{"site", Filter{}.WithSite("F3"), "F3"},
		{"all is no constraint", Filter{EPCI: "all", Municipality: "ALL", SiteID: " all "}, "F1,F2,F3,F4,F5"},
		{"padded literal", Filter{Municipality: " Sedan "}, "F1,F2"},
		{"padded setters", Filter{}.WithEPCI(" CC Ardennes Thiérache").WithSite("F4 "), "F4"},
		{"combined with status", Filter{}.WithEPCI("CA Ardenne Métropole").WithStatus(StatusPotential, false), "F2,F3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(visibleIDs(c, tt.f), ",")
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCascadeResetsChildren(t *testing.T) {
	f := Filter{}.WithEPCI("a").WithMunicipality("b").WithSite("c")
	if f.Municipality != "b" || f.SiteID != "c" {
		t.Fatalf("unexpected filter %+v", f)
	}
	g := f.WithEPCI("x")
	if g.Municipality != "" || g.SiteID != "" {
		t.Errorf("WithEPCI should reset children, got %+v", g)
	}
	h := f.WithMunicipality("y")
	if h.EPCI != "a" || h.SiteID != "" {
		t.Errorf("WithMunicipality should keep the group and reset the site, got %+v", h)
	}
	if f.Municipality != "b" {
		t.Errorf("setters must not mutate the receiver")
	}
}

func TestWithStatusCopiesSet(t *testing.T) {
	a := Filter{}.WithStatus(StatusConverted, false)
	b := a.WithStatus(StatusPotential, false)
	if !a.StatusChecked(StatusPotential) {
		t.Errorf("toggling on a copy changed the original")
	}
	if b.StatusChecked(StatusPotential) || b.StatusChecked(StatusConverted) {
		t.Errorf("expected both unchecked, got %+v", b.Statuses)
	}
	if !b.StatusChecked(StatusWithProject) {
		t.Errorf("untouched status should stay checked")
	}
}

func TestNormalizeDropsOrphanSelections(t *testing.T) {
	c := sampleCatalog(t)

	f := Filter{EPCI: "CC Ardennes Thiérache", Municipality: "Sedan", SiteID: "F1"}.Normalize(c)
	if f.EPCI != "CC Ardennes Thiérache" || f.Municipality != "" || f.SiteID != "" {
		t.Errorf("expected municipality and site dropped, got %+v", f)
	}

	f = Filter{EPCI: "Nowhere", Municipality: "Sedan"}.Normalize(c)
	if f.EPCI != "" || f.Municipality != "" {
		t.Errorf("unknown group should reset everything, got %+v", f)
	}

	f = Filter{Municipality: "Sedan", SiteID: "F3"}.Normalize(c)
	if f.Municipality != "Sedan" || f.SiteID != "" {
		t.Errorf("site outside the municipality should be dropped, got %+v", f)
	}

	f = Filter{Municipality: " Sedan", SiteID: "F2 "}.Normalize(c)
	if f.SiteID != "F2" {
		t.Errorf("valid selection should be kept, got %+v", f)
	}
}
