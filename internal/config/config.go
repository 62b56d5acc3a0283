package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FRICHES_"

// Source selects where the site table is read from.
type Source string

const (
	SourceCSV      Source = "csv"
	SourcePostgres Source = "postgres"
	SourceSQLite   Source = "sqlite"
)

type Config struct {
	Port           string        `yaml:"port" koanf:"port"`
	Source         Source        `yaml:"source" koanf:"source"`
	DataPath       string        `yaml:"data_path" koanf:"data_path"`
	Delimiter      string        `yaml:"delimiter" koanf:"delimiter"`
	ParcelsGeoJSON string        `yaml:"parcels_geojson" koanf:"parcels_geojson"`
	RegionGeoJSON  string        `yaml:"region_geojson" koanf:"region_geojson"`
	JoinKey        string        `yaml:"join_key" koanf:"join_key"`
	DatabaseURL    string        `yaml:"database_url" koanf:"database_url"`
	SQLitePath     string        `yaml:"sqlite_path" koanf:"sqlite_path"`
	AllowedOrigins []string      `yaml:"allowed_origins" koanf:"allowed_origins"`
	RateLimit      float64       `yaml:"rate_limit" koanf:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst" koanf:"rate_burst"`
	AdminTokenHash string        `yaml:"admin_token_hash" koanf:"admin_token_hash"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" koanf:"fetch_timeout"`
	LogSQL         bool          `yaml:"log_sql" koanf:"log_sql"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:           "5050",
		Source:         SourceCSV,
		DataPath:       "data/friches.csv",
		JoinKey:        "site_id",
		SQLitePath:     "data/friches.sqlite",
		AllowedOrigins: []string{"http://localhost:5173"},
		RateLimit:      20,
		RateBurst:      40,
		FetchTimeout:   30 * time.Second,
	}
}

// yamlParser plugs goccy/go-yaml into koanf.
type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (yamlParser) Marshal(m map[string]interface{}) ([]byte, error) {
	return yaml.Marshal(m)
}

// envValue maps FRICHES_DATA_PATH to data_path. Comma separated origins
// become a list.
func envValue(key, value string) (string, interface{}) {
	k := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if k == "allowed_origins" {
		return k, splitList(value)
	}
	return k, value
}

func splitList(v string) []string {
	out := []string{}
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads defaults, then the YAML file at path when it exists, then
// FRICHES_* environment overrides. The plain PORT and DATABASE_URL variables
// are honoured when the prefixed ones are not set.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yamlParser{}); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if !k.Exists("port") {
		if p := os.Getenv("PORT"); p != "" {
			cfg.Port = p
		}
	}
	if !k.Exists("database_url") {
		if u := os.Getenv("DATABASE_URL"); u != "" {
			cfg.DatabaseURL = u
		}
	}

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// DelimiterRune returns the configured separator, 0 for auto-detect.
func (c *Config) DelimiterRune() rune {
	switch c.Delimiter {
	case "", "auto":
		return 0
	case "tab", `\t`:
		return '\t'
	}
	return []rune(c.Delimiter)[0]
}

func validDelimiter(d string) bool {
	switch d {
	case "", "auto", "tab", `\t`:
		return true
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == utf8.RuneError {
		return false
	}
	return r != '"' && r != '\r' && r != '\n' && r != 0
}

var validSources = map[Source]bool{
	SourceCSV:      true,
	SourcePostgres: true,
	SourceSQLite:   true,
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	if !validSources[c.Source] {
		return fmt.Errorf("invalid source %q: must be one of csv, postgres, sqlite", c.Source)
	}
	switch c.Source {
	case SourceCSV:
		if c.DataPath == "" {
			return fmt.Errorf("data_path is required for the csv source")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the postgres source")
		}
	case SourceSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite source")
		}
	}

	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if !validDelimiter(c.Delimiter) {
		return fmt.Errorf("invalid delimiter %q: must be a single character, tab or auto", c.Delimiter)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative")
	}
	if c.RateBurst < 0 {
		return fmt.Errorf("rate_burst must be non-negative")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must be non-negative")
	}
	return nil
}
