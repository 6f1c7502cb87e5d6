package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/orbits/internal/sim"
)

type ExportData struct {
	Run     RunMetadata  `json:"run"`
	Samples []sim.Sample `json:"samples"`
}

// ExportJSON writes a run report and its samples as one JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, samples []sim.Sample) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: meta, Samples: samples})
}
