package friches

import (
	"fmt"
	"log"

	"github.com/EmpoweredVote/friches-map/internal/db"
	"gorm.io/gorm"
)

// Migrate creates the friches schema and its tables.
func Migrate(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "friches"); err != nil {
		return fmt.Errorf("ensure schema friches: %w", err)
	}
	if err := d.AutoMigrate(&SiteRecord{}); err != nil {
		return fmt.Errorf("auto-migrate friches tables: %w", err)
	}
	return nil
}

// Init prepares the shared database. Only called when the server reads
// from Postgres; the CSV and SQLite sources need nothing from it.
func Init() {
	if err := Migrate(db.DB); err != nil {
		log.Fatal("Failed to migrate: ", err)
	}

	log.Println("Friches module initialized")
}
