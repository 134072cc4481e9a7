// This file reads the engine's feature dataset just enough to support the
// party-mode endpoint: picking a random known title. The dataset is a CSV
// keyed by a "filename" column holding audio filenames.
package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
)

// Dataset exposes read-only views over the feature CSV consumed by the
// engine. The feature columns themselves are the engine's business; only the
// filename column is read here.
type Dataset struct {
	Path string

	// StripExtensions mirrors Runner.StripExtensions so titles read from
	// the dataset match what the engine would return.
	StripExtensions []string

	// rand is substitutable in tests; nil means the global source.
	Rand *rand.Rand
}

// RandomTitle returns the title of a uniformly random dataset row with its
// audio extension stripped. Rows with an empty filename are skipped.
func (d Dataset) RandomTitle() (string, error) {
	titles, err := d.titles()
	if err != nil {
		return "", err
	}
	if len(titles) == 0 {
		return "", fmt.Errorf("%w: dataset %q has no rows", ErrEmptyResult, d.Path)
	}
	var idx int
	if d.Rand != nil {
		idx = d.Rand.Intn(len(titles))
	} else {
		idx = rand.Intn(len(titles))
	}
	return StripAudioExtension(titles[idx], d.StripExtensions), nil
}

// titles reads the filename column. The reader tolerates ragged rows because
// feature vectors are stored as quoted comma-separated lists and older
// dataset builds were inconsistent about quoting.
func (d Dataset) titles() ([]string, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read dataset header: %v", ErrUnavailable, err)
	}
	col := -1
	for i, name := range header {
		if name == "filename" {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, fmt.Errorf("%w: dataset %q has no filename column", ErrUnavailable, d.Path)
	}

	var titles []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read dataset row: %v", ErrUnavailable, err)
		}
		if col < len(rec) && rec[col] != "" {
			titles = append(titles, rec[col])
		}
	}
	return titles, nil
}
