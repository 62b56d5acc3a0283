package frichesimport

import (
	"time"

	"github.com/EmpoweredVote/friches-map/internal/friches"
	"github.com/google/uuid"
)

// siteColumns matches the order of the values built by copyRow.
var siteColumns = []string{
	"id", "site_id", "position", "name", "municipality", "municipality_code",
	"epci", "status", "raw_status", "surface", "lat", "lng",
	"owners", "owner_anonymized", "pollution", "imported_at",
}

func copyRow(r friches.SiteRecord) []any {
	var surface any
	if r.Surface != nil {
		surface = *r.Surface
	}
	return []any{
		r.ID, r.SiteID, r.Position, r.Name, r.Municipality, r.MunicipalityCode,
		r.EPCI, r.Status, r.RawStatus, surface, r.Lat, r.Lng,
		[]string(r.Owners), r.OwnerAnonymized, r.Pollution, r.ImportedAt,
	}
}

func buildRows(ns uuid.UUID, sites []friches.Site, now time.Time) [][]any {
	rows := make([][]any, 0, len(sites))
	for i, s := range sites {
		rows = append(rows, copyRow(friches.NewRecord(ns, i, s, now)))
	}
	return rows
}
