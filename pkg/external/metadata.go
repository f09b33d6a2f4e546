package external

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lastUpdatedLayout = "2006-01-02 15:04:05"

// ReleaseMetadata records which ClinVar release was last ingested locally.
type ReleaseMetadata struct {
	ReleaseDate string `json:"release_date"`
	LastUpdated string `json:"last_updated"`
}

// Release returns the parsed release date.
func (m ReleaseMetadata) Release() (time.Time, error) {
	return time.Parse(releaseTag, m.ReleaseDate)
}

// LoadMetadata reads the metadata file. A missing or invalid file yields
// (nil, nil) so that the caller treats the install as never updated.
func LoadMetadata(path string) (*ReleaseMetadata, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata %s: %w", path, err)
	}

	var m ReleaseMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil
	}
	if _, err := m.Release(); err != nil {
		return nil, nil
	}
	return &m, nil
}

// SaveMetadata writes release as the locally ingested release.
func SaveMetadata(path string, release time.Time, now time.Time) error {
	if release.IsZero() {
		return fmt.Errorf("saving metadata: empty release date")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	m := ReleaseMetadata{
		ReleaseDate: release.Format(releaseTag),
		LastUpdated: now.Format(lastUpdatedLayout),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// NeedsUpdate decides whether the remote release should be ingested.
func NeedsUpdate(remote time.Time, local *ReleaseMetadata, force bool) bool {
	if force || local == nil {
		return true
	}
	localDate, err := local.Release()
	if err != nil {
		return true
	}
	return remote.After(localDate)
}

// FirstThursday returns the first Thursday of the month containing t.
func FirstThursday(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	for d.Weekday() != time.Thursday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// UpdateWindowOpen reports whether the monthly release has been published,
// which ClinVar does in the first week of the month. The window opens on the
// Friday after the first Thursday.
func UpdateWindowOpen(now time.Time) bool {
	return !now.Before(FirstThursday(now).AddDate(0, 0, 1))
}
