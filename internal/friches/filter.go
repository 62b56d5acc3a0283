package friches

import "strings"

// AllValue is the dropdown entry meaning "no constraint".
const AllValue = "all"

// Filter is the full set of user choices: three cascading dropdowns, a surface
// range and the status checkboxes. The zero value matches every site.
type Filter struct {
	EPCI         string
	Municipality string
	SiteID       string

	// Inclusive bounds in square meters; nil means unbounded.
	SurfaceMin *float64
	SurfaceMax *float64

	// Statuses holds the checked boxes. nil means every box is checked;
	// an empty non-nil set means none is.
	Statuses map[Status]bool
}

func selected(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, AllValue)
}

// WithEPCI selects a group and resets the dropdowns that depend on it.
func (f Filter) WithEPCI(v string) Filter {
	f.EPCI = strings.TrimSpace(v)
	f.Municipality = ""
	f.SiteID = ""
	return f
}

// WithMunicipality selects a municipality and resets the site dropdown.
func (f Filter) WithMunicipality(v string) Filter {
	f.Municipality = strings.TrimSpace(v)
	f.SiteID = ""
	return f
}

func (f Filter) WithSite(id string) Filter {
	f.SiteID = strings.TrimSpace(id)
	return f
}

// WithStatus returns a copy with one checkbox toggled.
func (f Filter) WithStatus(s Status, checked bool) Filter {
	next := make(map[Status]bool, len(KnownStatuses))
	for _, k := range KnownStatuses {
		next[k] = f.StatusChecked(k)
	}
	next[s] = checked
	f.Statuses = next
	return f
}

// WithSurface returns a copy with the surface range replaced.
func (f Filter) WithSurface(lo, hi *float64) Filter {
	f.SurfaceMin = lo
	f.SurfaceMax = hi
	return f
}

func (f Filter) StatusChecked(s Status) bool {
	if f.Statuses == nil {
		return true
	}
	return f.Statuses[s]
}

// emptyRange reports an interval that no value can fall into.
func (f Filter) emptyRange() bool {
	return f.SurfaceMin != nil && f.SurfaceMax != nil && *f.SurfaceMin > *f.SurfaceMax
}

// matchSelection applies only the dropdown predicates.
func (f Filter) matchSelection(s *Site) bool {
	if selected(f.EPCI) && s.EPCI != strings.TrimSpace(f.EPCI) {
		return false
	}
	if selected(f.Municipality) && s.Municipality != strings.TrimSpace(f.Municipality) {
		return false
	}
	if selected(f.SiteID) && s.ID != strings.TrimSpace(f.SiteID) {
		return false
	}
	return true
}

func (f Filter) matchSurface(s *Site) bool {
	if f.SurfaceMin == nil && f.SurfaceMax == nil {
		return true
	}
	if s.Surface == nil || f.emptyRange() {
		return false
	}
	if f.SurfaceMin != nil && *s.Surface < *f.SurfaceMin {
		return false
	}
	if f.SurfaceMax != nil && *s.Surface > *f.SurfaceMax {
		return false
	}
	return true
}

// matchStatus leaves sites with an unrecognized status alone: no checkbox
// controls them.
func (f Filter) matchStatus(s *Site) bool {
	if !s.Status.Known() {
		return true
	}
	return f.StatusChecked(s.Status)
}

// Match is the conjunction of every predicate.
func (f Filter) Match(s *Site) bool {
	return f.matchSelection(s) && f.matchSurface(s) && f.matchStatus(s)
}

// Normalize drops child selections that are not offered under their parent,
// the way a dropdown falls back to "all" once its option disappears.
func (f Filter) Normalize(c *Catalog) Filter {
	f.EPCI = strings.TrimSpace(f.EPCI)
	f.Municipality = strings.TrimSpace(f.Municipality)
	f.SiteID = strings.TrimSpace(f.SiteID)
	if selected(f.EPCI) && !c.hasEPCI(f.EPCI) {
		f = f.WithEPCI("")
	}
	if selected(f.Municipality) {
		parent := Filter{EPCI: f.EPCI}
		if !c.any(func(s *Site) bool { return parent.matchSelection(s) && s.Municipality == f.Municipality }) {
			f = f.WithMunicipality("")
		}
	}
	if selected(f.SiteID) {
		parent := Filter{EPCI: f.EPCI, Municipality: f.Municipality}
		if !c.any(func(s *Site) bool { return parent.matchSelection(s) && s.ID == f.SiteID }) {
			f.SiteID = ""
		}
	}
	return f
}
