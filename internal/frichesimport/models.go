package frichesimport

// Config drives one import. Namespace must stay the same across runs so a
// site keeps its primary key.
type Config struct {
	CSVPath     string
	DatabaseURL string
	Namespace   string
	Delimiter   rune
	Wipe        bool
}

// Summary reports what an import wrote.
type Summary struct {
	RowsRead        int
	Inserted        int64
	DroppedNoCoords int
	Duplicates      int
	UnknownStatus   int
}
