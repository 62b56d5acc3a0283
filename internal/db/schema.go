package db

import (
	"strings"

	"gorm.io/gorm"
)

// EnsureSchema creates a Postgres schema when missing.
func EnsureSchema(d *gorm.DB, schema string) error {
	quoted := `"` + strings.ReplaceAll(schema, `"`, `""`) + `"`
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS ` + quoted).Error
}
