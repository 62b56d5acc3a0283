package friches

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// SiteSource produces the rows of one dataset load.
type SiteSource interface {
	// Name identifies the source in logs.
	Name() string

	LoadSites(ctx context.Context) ([]Site, LoadReport, error)
}

// Opener fetches a file from disk or over http(s). A nil Opener uses
// http.DefaultClient.
type Opener struct {
	Client *http.Client
}

// NewOpener returns an Opener whose http requests give up after timeout.
func NewOpener(timeout time.Duration) *Opener {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Opener{Client: &http.Client{Timeout: timeout}}
}

func isURL(loc string) bool {
	l := strings.ToLower(loc)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Open returns a reader for a filesystem path or an http(s) URL.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !isURL(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", location, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	client := http.DefaultClient
	if o != nil && o.Client != nil {
		client = o.Client
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status code %d", location, resp.StatusCode)
	}
	return resp.Body, nil
}

// CSVSource reads the friches table from a path or URL.
type CSVSource struct {
	Location  string
	Delimiter rune
	Opener    *Opener
}

func (s *CSVSource) Name() string { return "csv " + s.Location }

func (s *CSVSource) LoadSites(ctx context.Context) ([]Site, LoadReport, error) {
	rc, err := s.Opener.Open(ctx, s.Location)
	if err != nil {
		return nil, LoadReport{}, err
	}
	defer rc.Close()
	return ParseCSV(rc, CSVOptions{Delimiter: s.Delimiter})
}

// OverlaySources names the optional GeoJSON inputs. Empty locations are
// skipped.
type OverlaySources struct {
	Parcels string
	Region  string
	JoinKey string
}

// LoadCatalog builds a catalog from the table source and the optional
// overlays. Only the table is required; an overlay that cannot be fetched or
// decoded is logged and left out.
func LoadCatalog(ctx context.Context, src SiteSource, overlays OverlaySources, opener *Opener) (*Catalog, error) {
	start := time.Now()
	sites, report, err := src.LoadSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sites from %s: %w", src.Name(), err)
	}

	parcels := loadOverlay(ctx, opener, "parcels", overlays.Parcels, overlays.JoinKey, true)
	region := loadOverlay(ctx, opener, "region", overlays.Region, "", false)

	c := NewCatalog(sites, parcels, region)
	c.report = report
	logLoad(src.Name(), report, time.Since(start))
	if parcels != nil {
		logJoin(c.ParcelCount(), c.ParcelsSkipped)
	}
	return c, nil
}

func loadOverlay(ctx context.Context, opener *Opener, name, location, joinKey string, polygonsOnly bool) *Overlay {
	if location == "" {
		return nil
	}
	rc, err := opener.Open(ctx, location)
	if err != nil {
		logOverlayError(name, location, err)
		return nil
	}
	defer rc.Close()

	ov, err := DecodeOverlay(rc, joinKey, polygonsOnly)
	if err != nil {
		logOverlayError(name, location, err)
		return nil
	}
	logOverlay(name, location, len(ov.Features), ov.Skipped)
	return ov
}
