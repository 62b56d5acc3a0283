package friches

import (
	"errors"
	"sort"
	"time"

	"github.com/EmpoweredVote/friches-map/internal/utils"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

var ErrSiteNotFound = errors.New("site not found")

// parcel is a boundary polygon joined to the site at index site.
type parcel struct {
	site     int
	geometry geom.T
}

// Catalog is the immutable in-memory collection the viewer works against:
// the sites, one prebuilt marker per site and the joined overlays. Every
// query re-evaluates the filter from scratch.
type Catalog struct {
	sites    []Site
	markers  []Marker
	byID     map[string]int
	parcels  []parcel
	region   *Overlay
	report   LoadReport
	loadedAt time.Time

	// ParcelsSkipped counts polygons that did not join to a site.
	ParcelsSkipped int
}

// NewCatalog takes ownership of sites. Duplicate ids keep the first site.
// parcels and region may be nil.
func NewCatalog(sites []Site, parcels, region *Overlay) *Catalog {
	c := &Catalog{
		sites:    make([]Site, 0, len(sites)),
		byID:     make(map[string]int, len(sites)),
		region:   region,
		loadedAt: time.Now(),
	}
	for _, s := range sites {
		if _, dup := c.byID[s.ID]; dup {
			continue
		}
		c.byID[s.ID] = len(c.sites)
		c.sites = append(c.sites, s)
		c.markers = append(c.markers, newMarker(s))
	}

	if parcels != nil {
		c.ParcelsSkipped = parcels.Skipped
		for _, f := range parcels.Features {
			i, ok := c.byID[f.Key]
			if !ok {
				c.ParcelsSkipped++
				continue
			}
			c.parcels = append(c.parcels, parcel{site: i, geometry: f.Geometry})
		}
	}
	return c
}

func (c *Catalog) Len() int { return len(c.sites) }
func (c *Catalog) Report() LoadReport { return c.report }
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }
func (c *Catalog) ParcelCount() int { return len(c.parcels) }
func (c *Catalog) HasRegion() bool { return c.region != nil }
func (c *Catalog) Region() *Overlay { return c.region }

// Site returns a copy of the site with the given id.
func (c *Catalog) Site(id string) (Site, error) {
	i, ok := c.byID[id]
	if !ok {
		return Site{}, ErrSiteNotFound
	}
	return c.sites[i], nil
}

// Visible returns the sites matching f, in load order.
func (c *Catalog) Visible(f Filter) []Site {
	out := []Site{}
	for i := range c.sites {
		if f.Match(&c.sites[i]) {
			out = append(out, c.sites[i])
		}
	}
	return out
}

// BBox is a lat/lng bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// MarkerSet is the visibility toggle result: every marker with its flag set,
// and the box around the visible ones (nil when none is).
type MarkerSet struct {
	Markers []Marker `json:"markers"`
	Visible int      `json:"visible"`
	Total   int      `json:"total"`
	Bounds  *BBox    `json:"bounds"`
}

// Markers evaluates f against every prebuilt marker.
func (c *Catalog) Markers(f Filter) MarkerSet {
	set := MarkerSet{Markers: make([]Marker, len(c.markers)), Total: len(c.markers)}
	b := geom.NewBounds(geom.XY)
	for i := range c.sites {
		m := c.markers[i]
		m.Visible = f.Match(&c.sites[i])
		if m.Visible {
			set.Visible++
			b.Extend(geom.NewPointFlat(geom.XY, []float64{m.Lng, m.Lat}))
		}
		set.Markers[i] = m
	}
	if set.Visible > 0 {
		set.Bounds = &BBox{MinLng: b.Min(0), MinLat: b.Min(1), MaxLng: b.Max(0), MaxLat: b.Max(1)}
	}
	return set
}

// Parcels returns the boundary polygons whose site is visible, colored by the
// joined status.
func (c *Catalog) Parcels(f Filter) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, p := range c.parcels {
		s := &c.sites[p.site]
		if !f.Match(s) {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       s.ID,
			Geometry: p.geometry,
			Properties: map[string]interface{}{
				"site_id": s.ID,
				"name":    s.DisplayName(),
				"status":  string(s.Status),
				"color":   s.Status.Color(),
			},
		})
	}
	return fc
}

// Points returns the visible sites as a point FeatureCollection.
func (c *Catalog) Points(f Filter) *geojson.FeatureCollection {
	return PointCollection(c.Visible(f))
}

// PointCollection encodes sites as GeoJSON points.
func PointCollection(sites []Site) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(sites))}
	for _, s := range sites {
		props := map[string]interface{}{
			"name":         s.DisplayName(),
			"municipality": s.Municipality,
			"epci":         s.EPCI,
			"status":       string(s.Status),
			"color":        s.Status.Color(),
			"owners":       s.Owners,
			"pollution":    s.Pollution,
		}
		if s.Surface != nil {
			props["surface"] = *s.Surface
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         s.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{s.Lng, s.Lat}),
			Properties: props,
		})
	}
	return fc
}

// StatusCount is one legend row.
type StatusCount struct {
	Status  Status `json:"status"`
	Label   string `json:"label"`
	Color   string `json:"color"`
	Visible int    `json:"visible"`
	Total   int    `json:"total"`
}

type Stats struct {
	Visible  int           `json:"visible"`
	Total    int           `json:"total"`
	ByStatus []StatusCount `json:"by_status"`
}

// Stats counts visible and total sites per status. The unknown row only
// appears when the dataset has such sites.
func (c *Catalog) Stats(f Filter) Stats {
	visible := map[Status]int{}
	total := map[Status]int{}
	st := Stats{Total: len(c.sites)}
	for i := range c.sites {
		s := &c.sites[i]
		total[s.Status]++
		if f.Match(s) {
			visible[s.Status]++
			st.Visible++
		}
	}
	order := append([]Status{}, KnownStatuses...)
	if total[StatusUnknown] > 0 {
		order = append(order, StatusUnknown)
	}
	for _, s := range order {
		st.ByStatus = append(st.ByStatus, StatusCount{
			Status:  s,
			Label:   s.Label(),
			Color:   s.Color(),
			Visible: visible[s],
			Total:   total[s],
		})
	}
	return st
}

// SurfaceRange returns the smallest and largest known surface, nil when no
// site has one.
func (c *Catalog) SurfaceRange() (lo, hi *float64) {
	for i := range c.sites {
		v := c.sites[i].Surface
		if v == nil {
			continue
		}
		if lo == nil || *v < *lo {
			x := *v
			lo = &x
		}
		if hi == nil || *v > *hi {
			x := *v
			hi = &x
		}
	}
	return lo, hi
}

func (c *Catalog) any(pred func(*Site) bool) bool {
	for i := range c.sites {
		if pred(&c.sites[i]) {
			return true
		}
	}
	return false
}

func (c *Catalog) hasEPCI(v string) bool {
	return c.any(func(s *Site) bool { return s.EPCI == v })
}

// Option is one dropdown entry.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Options holds the repopulated dropdowns for a selection.
type Options struct {
	EPCI           string   `json:"epci"`
	Municipality   string   `json:"municipality"`
	SiteID         string   `json:"site"`
	EPCIs          []Option `json:"epcis"`
	Municipalities []Option `json:"municipalities"`
	Sites          []Option `json:"sites"`
	SurfaceMin     *float64 `json:"surface_min"`
	SurfaceMax     *float64 `json:"surface_max"`
}

// Options re-derives the three dropdowns. Each list is narrowed only by the
// dropdowns above it; surface and status choices never remove options.
func (c *Catalog) Options(f Filter) Options {
	f = f.Normalize(c)
	opts := Options{
		EPCI:         valueOrAll(f.EPCI),
		Municipality: valueOrAll(f.Municipality),
		SiteID:       valueOrAll(f.SiteID),
	}

	epcis := newOptionSet()
	municipalities := newOptionSet()
	sites := newOptionSet()

	byEPCI := Filter{EPCI: f.EPCI}
	byMunicipality := Filter{EPCI: f.EPCI, Municipality: f.Municipality}
	for i := range c.sites {
		s := &c.sites[i]
		epcis.add(s.EPCI, s.EPCI)
		if byEPCI.matchSelection(s) {
			municipalities.add(s.Municipality, s.Municipality)
		}
		if byMunicipality.matchSelection(s) {
			sites.add(s.ID, s.DisplayName())
		}
	}

	opts.EPCIs = epcis.sorted()
	opts.Municipalities = municipalities.sorted()
	opts.Sites = sites.sorted()
	opts.SurfaceMin, opts.SurfaceMax = c.SurfaceRange()
	return opts
}

func valueOrAll(v string) string {
	if selected(v) {
		return v
	}
	return AllValue
}

type optionSet struct {
	index map[string]int
	list  []Option
}

func newOptionSet() *optionSet {
	return &optionSet{index: map[string]int{}}
}

// add skips blank values; sites without a group or municipality stay
// reachable through "all".
func (o *optionSet) add(value, label string) {
	if value == "" {
		return
	}
	if i, ok := o.index[value]; ok {
		o.list[i].Count++
		return
	}
	o.index[value] = len(o.list)
	o.list = append(o.list, Option{Value: value, Label: label, Count: 1})
}

func (o *optionSet) sorted() []Option {
	out := append([]Option{}, o.list...)
	coll := utils.FrenchCollator()
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := coll.CompareString(out[i].Label, out[j].Label); cmp != 0 {
			return cmp < 0
		}
		return out[i].Value < out[j].Value
	})
	return out
}
