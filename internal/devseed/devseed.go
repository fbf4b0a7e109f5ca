// Package devseed loads seed files used to pre-populate mock and sandbox
// grids during local development.
package devseed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Entry is one map entry to pre-load. Key and Value are JSON documents.
type Entry struct {
	Map   string          `json:"map"`
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Load reads seed entries from path. Files ending in .yaml or .yml are parsed
// as YAML, anything else as JSON. Both formats hold a list of entries.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// YAML is normalised to JSON so keys and values keep their JSON form.
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("devseed: parse %s: %w", path, err)
		}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("devseed: decode %s: %w", path, err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Map) == "" {
			return nil, fmt.Errorf("devseed: %s: entry %d missing map", path, i)
		}
		if len(e.Key) == 0 {
			return nil, fmt.Errorf("devseed: %s: entry %d missing key", path, i)
		}
	}
	return entries, nil
}
