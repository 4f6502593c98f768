package zone

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Read parses a zone file.
func Read(path string) (Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Polygon
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse zone file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads the zone file at path. A missing or malformed file is not
// fatal: a warning is logged and DefaultPolygon is returned.
func Load(path string) Polygon {
	p, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("zone: %s not found, using default polygon", path)
		} else {
			log.Printf("zone: %s unreadable (%v), using default polygon", path, err)
		}
		return DefaultPolygon()
	}
	log.Printf("zone: loaded %d points from %s", len(p), path)
	return p
}

// Save replaces the zone file with p. The file is written to a temporary
// sibling and renamed, so readers never see a partial file.
func Save(path string, p Polygon) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create zone dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".zone-*.json")
	if err != nil {
		return fmt.Errorf("create temp zone file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write zone file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close zone file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace zone file: %w", err)
	}
	return nil
}
