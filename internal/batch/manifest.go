package batch

import (
	"encoding/json"
	"os"
)

// Manifest is the run summary written next to the outputs.
type Manifest struct {
	Jobs      int      `json:"jobs"`
	Succeeded int      `json:"succeeded"`
	Results   []Result `json:"results"`
}

// WriteManifest writes the results of a run as indented JSON.
func WriteManifest(path string, results []Result) error {
	m := Manifest{Jobs: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			m.Succeeded++
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
