package criteria

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"hazard-alerts/internal/events"
)

// Document is the on-disk and in-Redis representation of the criteria table.
type Document struct {
	SchemaVersion int     `yaml:"schema_version" json:"schema_version"`
	Criteria      Entries `yaml:"criteria" json:"criteria"`
}

// Load reads and parses the YAML criteria file at path.
func Load(path string) (Entries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("criteria: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML (or JSON) criteria document and validates it.
func Parse(data []byte) (Entries, error) {
	doc := defaults()
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("criteria: parse yaml: %w", err)
	}
	if err := validate(doc); err != nil {
		return nil, fmt.Errorf("criteria: %w", err)
	}
	return doc.Criteria, nil
}

func defaults() *Document {
	return &Document{
		SchemaVersion: events.SchemaVersion,
		Criteria:      Entries{},
	}
}

func validate(doc *Document) error {
	if doc.SchemaVersion != events.SchemaVersion {
		return fmt.Errorf("unsupported schema_version %d", doc.SchemaVersion)
	}
	for hazardType, list := range doc.Criteria {
		parts := strings.Split(hazardType, ".")
		if len(parts) < 2 || len(parts) > 3 {
			return fmt.Errorf("hazard type %q: want PHEN.SIG or PHEN.SIG.SUBTYPE", hazardType)
		}
		for _, p := range parts {
			if p == "" {
				return fmt.Errorf("hazard type %q: empty component", hazardType)
			}
		}
		seen := make(map[string]bool, len(list))
		for i, c := range list {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", hazardType, i, err)
			}
			if seen[c.Name] {
				return fmt.Errorf("%s[%d]: duplicate criterion name %q", hazardType, i, c.Name)
			}
			seen[c.Name] = true
		}
	}
	return nil
}

// Watch monitors path for changes and calls onChange with the newly loaded
// entries each time the file is written. It runs until ctx is cancelled.
//
// If a reload fails the error is logged and onChange is not called, so the
// previous criteria remain active.
func Watch(ctx context.Context, path string, onChange func(Entries)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("Watching criteria file for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, so Create counts as a write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			entries, err := Load(path)
			if err != nil {
				slog.Error("Criteria reload failed, keeping previous criteria",
					"path", path,
					"error", err,
				)
				continue
			}

			slog.Info("Criteria file reloaded",
				"path", path,
				"hazard_types", len(entries),
				"criteria_count", entries.count(),
			)
			onChange(entries)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Criteria watcher error", "error", err)
		}
	}
}
