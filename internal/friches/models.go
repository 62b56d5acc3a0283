package friches

import (
	"strings"

	"github.com/EmpoweredVote/friches-map/internal/utils"
)

// Status is the redevelopment stage of a friche. It drives both marker color
// and the status checkboxes.
type Status string

const (
	StatusPotential      Status = "potential"
	StatusWithoutProject Status = "without_project"
	StatusWithProject    Status = "with_project"
	StatusConverted      Status = "converted"
	StatusUnknown        Status = "unknown"
)

// KnownStatuses lists the four checkbox statuses in legend order.
var KnownStatuses = []Status{
	StatusPotential,
	StatusWithoutProject,
	StatusWithProject,
	StatusConverted,
}

var statusLabels = map[Status]string{
	StatusPotential:      "friche potentielle",
	StatusWithoutProject: "friche sans projet",
	StatusWithProject:    "friche avec projet",
	StatusConverted:      "friche reconvertie",
	StatusUnknown:        "statut inconnu",
}

var statusColors = map[Status]string{
	StatusPotential:      "#f0a30a",
	StatusWithoutProject: "#e51400",
	StatusWithProject:    "#1ba1e2",
	StatusConverted:      "#60a917",
	StatusUnknown:        "#7f7f7f",
}

// statusAliases maps folded spellings seen across dataset exports.
var statusAliases = map[string]Status{
	"friche potentielle": StatusPotential,
	"potentielle":        StatusPotential,
	"potential":          StatusPotential,
	"friche sans projet": StatusWithoutProject,
	"sans projet":        StatusWithoutProject,
	"without project":    StatusWithoutProject,
	"without_project":    StatusWithoutProject,
	"friche avec projet": StatusWithProject,
	"avec projet":        StatusWithProject,
	"with project":       StatusWithProject,
	"with_project":       StatusWithProject,
	"friche reconvertie": StatusConverted,
	"reconvertie":        StatusConverted,
	"converted":          StatusConverted,
}

// ParseStatus accepts French labels and API keys, ignoring case and accents.
// Anything else is StatusUnknown.
func ParseStatus(raw string) Status {
	if s, ok := statusAliases[utils.Fold(raw)]; ok {
		return s
	}
	return StatusUnknown
}

// Known reports whether s is one of the four checkbox statuses.
func (s Status) Known() bool {
	switch s {
	case StatusPotential, StatusWithoutProject, StatusWithProject, StatusConverted:
		return true
	}
	return false
}

func (s Status) Label() string { return statusLabels[s] }

func (s Status) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return statusColors[StatusUnknown]
}

// Site is one row of the friches table. Sites are never modified after the
// catalog that holds them is published.
type Site struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Municipality     string   `json:"municipality"`
	MunicipalityCode string   `json:"municipality_code,omitempty"`
	EPCI             string   `json:"epci"`
	Status           Status   `json:"status"`
	RawStatus        string   `json:"raw_status,omitempty"`
	Surface          *float64 `json:"surface,omitempty"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Owners           []string `json:"owners"`
	OwnerAnonymized  bool     `json:"owner_anonymized"`
	Pollution        string   `json:"pollution,omitempty"`
}

// DisplayName falls back to the identifier for unnamed sites.
func (s Site) DisplayName() string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return s.ID
}

// Marker is the prebuilt map point for a site. Visible is the only field that
// changes between filter evaluations, and only on copies.
type Marker struct {
	SiteID  string  `json:"site_id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Status  Status  `json:"status"`
	Color   string  `json:"color"`
	Visible bool    `json:"visible"`
}

func newMarker(s Site) Marker {
	return Marker{
		SiteID: s.ID,
		Name:   s.DisplayName(),
		Lat:    s.Lat,
		Lng:    s.Lng,
		Status: s.Status,
		Color:  s.Status.Color(),
	}
}

// LoadReport summarizes what happened to the rows of one table load.
type LoadReport struct {
	RowsRead        int            `json:"rows_read"`
	RowsKept        int            `json:"rows_kept"`
	DroppedNoCoords int            `json:"dropped_no_coords"`
	Duplicates      int            `json:"duplicates"`
	UnknownStatus   int            `json:"unknown_status"`
	ByStatus        map[Status]int `json:"by_status"`
}
