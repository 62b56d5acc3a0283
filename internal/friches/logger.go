package friches

import (
	"log"
	"time"
)

// logLoad logs a finished dataset load.
func logLoad(source string, r LoadReport, duration time.Duration) {
	log.Printf("[friches] loaded %s: read=%d kept=%d no_coords=%d duplicates=%d unknown_status=%d in %dms",
		source, r.RowsRead, r.RowsKept, r.DroppedNoCoords, r.Duplicates, r.UnknownStatus, duration.Milliseconds())
}

// logOverlay logs a decoded overlay.
func logOverlay(name, location string, kept, skipped int) {
	log.Printf("[overlay] %s %s: features=%d skipped=%d", name, location, kept, skipped)
}

// logJoin logs how many parcel polygons matched a site.
func logJoin(joined, skipped int) {
	log.Printf("[overlay] parcels joined=%d skipped=%d", joined, skipped)
}

// logOverlayError logs an optional overlay that could not be loaded. The
// marker layer is served regardless.
func logOverlayError(name, location string, err error) {
	log.Printf("[overlay] %s %s unavailable: %v", name, location, err)
}

// logError logs an error from a dataset operation.
func logError(operation string, err error) {
	log.Printf("[friches] %s error: %v", operation, err)
}
