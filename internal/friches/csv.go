package friches

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/EmpoweredVote/friches-map/internal/utils"
)

var (
	ErrNoDataRows    = errors.New("csv has no data rows")
	ErrMissingColumn = errors.New("missing required column")
)

// ParseError reports the stage and line at which a table could not be read.
type ParseError struct {
	Stage string
	Line  int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at %s stage, line %d: %v", e.Stage, e.Line, e.Err)
	}
	return fmt.Sprintf("parse error at %s stage: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// columnAliases lists accepted header spellings per logical column. The
// table layout drifted between exports; the first alias is the canonical one.
var columnAliases = map[string][]string{
	"id":           {"site_id", "id", "identifiant"},
	"name":         {"site_nom", "nom", "name"},
	"municipality": {"comm_nom", "commune", "municipality"},
	"insee":        {"comm_insee", "insee"},
	"epci":         {"epci_nom", "epci", "intercommunalite"},
	"status":       {"site_statut", "statut", "status"},
	"surface":      {"site_surface", "unite_fonciere_surface", "surface"},
	"lat":          {"latitude", "lat"},
	"lng":          {"longitude", "lon", "lng"},
	"owners":       {"proprio_nom", "proprietaire", "owner"},
	"pollution":    {"sol_pollution_existe", "site_pollution", "pollution"},
}

var requiredColumns = []string{"id", "lat", "lng"}

// CSVOptions tunes ParseCSV. A zero Delimiter means auto-detect.
type CSVOptions struct {
	Delimiter rune
}

// ParseCSV reads a friches table. Rows whose coordinates are missing, not
// numeric or outside WGS84 are dropped and only counted in the report.
func ParseCSV(r io.Reader, opts CSVOptions) ([]Site, LoadReport, error) {
	report := LoadReport{ByStatus: map[Status]int{}}

	br := bufio.NewReader(r)
	delim := opts.Delimiter
	if delim == 0 {
		head, err := br.Peek(4096)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, report, &ParseError{Stage: "header", Err: err}
		}
		delim = detectDelimiter(head)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, report, &ParseError{Stage: "header", Err: ErrNoDataRows}
	}
	if err != nil {
		return nil, report, &ParseError{Stage: "header", Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col, err := mapColumns(header)
	if err != nil {
		return nil, report, &ParseError{Stage: "header", Line: 1, Err: err}
	}

	type unnamedRow struct{ index, line int }
	seen := map[string]bool{}
	var out []Site
	var unnamed []unnamedRow

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, report, &ParseError{Stage: "rows", Err: err}
		}
		line, _ := cr.FieldPos(0)
		if blankRecord(rec) {
			continue
		}
		report.RowsRead++

		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		lat, latOK := parseCoord(get("lat"), 90)
		lng, lngOK := parseCoord(get("lng"), 180)
		if !latOK || !lngOK {
			report.DroppedNoCoords++
			continue
		}

		// Blank ids are named once every real id is known.
		id := get("id")
		if id == "" {
			unnamed = append(unnamed, unnamedRow{index: len(out), line: line})
		} else if seen[id] {
			report.Duplicates++
			continue
		} else {
			seen[id] = true
		}

		owners, anonymized := ParseOwners(get("owners"))
		rawStatus := get("status")
		site := Site{
			ID:               id,
			Name:             get("name"),
			Municipality:     get("municipality"),
			MunicipalityCode: get("insee"),
			EPCI:             get("epci"),
			Status:           ParseStatus(rawStatus),
			RawStatus:        rawStatus,
			Surface:          ParseSurface(get("surface")),
			Lat:              lat,
			Lng:              lng,
			Owners:           owners,
			OwnerAnonymized:  anonymized,
			Pollution:        get("pollution"),
		}
		if site.Status == StatusUnknown {
			report.UnknownStatus++
		}
		report.ByStatus[site.Status]++
		out = append(out, site)
	}

	if report.RowsRead == 0 {
		return nil, report, &ParseError{Stage: "rows", Err: ErrNoDataRows}
	}
	for _, u := range unnamed {
		id := fmt.Sprintf("row-%d", u.line)
		for n := 2; seen[id]; n++ {
			id = fmt.Sprintf("row-%d-%d", u.line, n)
		}
		seen[id] = true
		out[u.index].ID = id
	}
	report.RowsKept = len(out)
	return out, report, nil
}

func mapColumns(header []string) (map[string]int, error) {
	byName := map[string]int{}
	for i, h := range header {
		key := utils.Fold(strings.Trim(h, "\" "))
		if _, dup := byName[key]; !dup {
			byName[key] = i
		}
	}

	col := map[string]int{}
	for logical, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := byName[a]; ok {
				col[logical] = i
				break
			}
		}
	}
	for _, k := range requiredColumns {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, columnAliases[k][0])
		}
	}
	return col, nil
}

// detectDelimiter picks the separator that occurs most often on the header
// line. French exports are usually ';'.
func detectDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestN := ',', bytes.Count(head, []byte{','})
	for _, c := range []rune{';', '\t'} {
		if n := bytes.Count(head, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// parseCoord accepts '.' or ',' as decimal separator and rejects values whose
// magnitude exceeds limit.
func parseCoord(s string, limit float64) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < -limit || v > limit {
		return 0, false
	}
	return v, true
}

// ParseSurface reads an area in square meters. It returns nil for empty or
// non-numeric input.
func ParseSurface(s string) *float64 {
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", ".").Replace(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}

// anonymizedOwners are folded sentinel values the producer writes in place of
// a private owner's name.
var anonymizedOwners = map[string]bool{
	"anonyme":                true,
	"anonymise":              true,
	"[anonymise]":            true,
	"proprietaire anonymise": true,
}

// ParseOwners splits a pipe-delimited ownership field. Sentinel entries are
// removed and reported through the second return value.
func ParseOwners(raw string) ([]string, bool) {
	owners := []string{}
	anonymized := false
	for _, part := range strings.Split(raw, "|") {
		o := strings.TrimSpace(part)
		if o == "" {
			continue
		}
		if anonymizedOwners[utils.Fold(o)] {
			anonymized = true
			continue
		}
		owners = append(owners, o)
	}
	return owners, anonymized
}
