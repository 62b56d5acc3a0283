package friches

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SiteRecord is the persisted form of a Site. Rows are written in bulk by
// the importer and read back in Position order.
type SiteRecord struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	SiteID           string         `gorm:"uniqueIndex;not null;column:site_id" json:"site_id"`
	Position         int            `gorm:"index;column:position" json:"position"`
	Name             string         `gorm:"column:name" json:"name"`
	Municipality     string         `gorm:"index;column:municipality" json:"municipality"`
	MunicipalityCode string         `gorm:"size:10;column:municipality_code" json:"municipality_code"`
	EPCI             string         `gorm:"index;column:epci" json:"epci"`
	Status           string         `gorm:"index;size:20;column:status" json:"status"`
	RawStatus        string         `gorm:"column:raw_status" json:"raw_status"`
	Surface          *float64       `gorm:"column:surface" json:"surface"`
	Lat              float64        `gorm:"not null;column:lat" json:"lat"`
	Lng              float64        `gorm:"not null;column:lng" json:"lng"`
	Owners           pq.StringArray `gorm:"type:text[];column:owners" json:"owners"`
	OwnerAnonymized  bool           `gorm:"column:owner_anonymized" json:"owner_anonymized"`
	Pollution        string         `gorm:"column:pollution" json:"pollution"`
	ImportedAt       time.Time      `gorm:"column:imported_at" json:"imported_at"`
}

func (SiteRecord) TableName() string { return "friches.sites" }

// RecordID derives the stable primary key of a site from the import
// namespace, so re-importing the same table yields the same ids.
func RecordID(ns uuid.UUID, siteID string) uuid.UUID {
	return uuid.NewSHA1(ns, []byte("site:"+siteID))
}

// NewRecord converts a parsed site.
func NewRecord(ns uuid.UUID, position int, s Site, importedAt time.Time) SiteRecord {
	owners := s.Owners
	if owners == nil {
		owners = []string{}
	}
	return SiteRecord{
		ID:               RecordID(ns, s.ID),
		SiteID:           s.ID,
		Position:         position,
		Name:             s.Name,
		Municipality:     s.Municipality,
		MunicipalityCode: s.MunicipalityCode,
		EPCI:             s.EPCI,
		Status:           string(s.Status),
		RawStatus:        s.RawStatus,
		Surface:          s.Surface,
		Lat:              s.Lat,
		Lng:              s.Lng,
		Owners:           pq.StringArray(owners),
		OwnerAnonymized:  s.OwnerAnonymized,
		Pollution:        s.Pollution,
		ImportedAt:       importedAt,
	}
}

// Site converts a record back. The stored status key is re-parsed so rows
// written by an older importer still land on a known value.
func (r SiteRecord) Site() Site {
	owners := []string(r.Owners)
	if owners == nil {
		owners = []string{}
	}
	return Site{
		ID:               r.SiteID,
		Name:             r.Name,
		Municipality:     r.Municipality,
		MunicipalityCode: r.MunicipalityCode,
		EPCI:             r.EPCI,
		Status:           ParseStatus(r.Status),
		RawStatus:        r.RawStatus,
		Surface:          r.Surface,
		Lat:              r.Lat,
		Lng:              r.Lng,
		Owners:           owners,
		OwnerAnonymized:  r.OwnerAnonymized,
		Pollution:        r.Pollution,
	}
}

// DBSource loads sites previously imported into Postgres.
type DBSource struct {
	DB *gorm.DB
}

func (s *DBSource) Name() string { return "postgres friches.sites" }

func (s *DBSource) LoadSites(ctx context.Context) ([]Site, LoadReport, error) {
	var records []SiteRecord
	if err := s.DB.WithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, LoadReport{}, fmt.Errorf("fetch sites: %w", err)
	}
	return sitesFromRecords(records)
}

func sitesFromRecords(records []SiteRecord) ([]Site, LoadReport, error) {
	report := LoadReport{ByStatus: map[Status]int{}, RowsRead: len(records)}
	sites := make([]Site, 0, len(records))
	for _, r := range records {
		s := r.Site()
		if s.Status == StatusUnknown {
			report.UnknownStatus++
		}
		report.ByStatus[s.Status]++
		sites = append(sites, s)
	}
	report.RowsKept = len(sites)
	if len(sites) == 0 {
		return nil, report, ErrNoDataRows
	}
	return sites, report, nil
}
