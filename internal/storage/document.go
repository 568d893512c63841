package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zeusync/glowline/internal/core/color"
	"github.com/zeusync/glowline/internal/core/kind"
	"github.com/zeusync/glowline/internal/core/selection"
)

// Document is the on-disk shape of the selection file.
type Document struct {
	OutlinesEnabled  bool             `json:"outlinesEnabled"`
	DefaultColor     color.ARGB       `json:"defaultColor"`
	SelectedItems    map[string]Entry `json:"selectedItems"`
	SelectedEntities map[string]Entry `json:"selectedEntities"`
	SelectedBlocks   map[string]Entry `json:"selectedBlocks"`
}

type Entry struct {
	Enabled bool       `json:"enabled"`
	Color   color.ARGB `json:"color"`
}

// FromSnapshot converts registry state into its document form.
func FromSnapshot(s selection.Snapshot) Document {
	doc := Document{
		OutlinesEnabled:  s.OutlinesEnabled,
		DefaultColor:     s.DefaultColor,
		SelectedItems:    make(map[string]Entry),
		SelectedEntities: make(map[string]Entry),
		SelectedBlocks:   make(map[string]Entry),
	}
	for k, e := range s.Entries {
		doc.section(k.Category)[k.Name] = Entry{Enabled: e.Enabled, Color: e.Color}
	}
	return doc
}

// Snapshot converts the document back into registry state. Identifiers
// without a namespace get the default one.
func (d Document) Snapshot() (selection.Snapshot, error) {
	snap := selection.Snapshot{
		OutlinesEnabled: d.OutlinesEnabled,
		DefaultColor:    d.DefaultColor,
		Entries:         make(map[kind.Kind]selection.Entry),
	}
	for _, cat := range kind.Categories {
		for id, e := range d.section(cat) {
			k, err := kind.Parse(cat, id)
			if err != nil {
				return selection.Snapshot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			snap.Entries[k] = selection.Entry{Enabled: e.Enabled, Color: e.Color}
		}
	}
	return snap, nil
}

func (d Document) section(cat kind.Category) map[string]Entry {
	switch cat {
	case kind.CategoryItem:
		return d.SelectedItems
	case kind.CategoryEntity:
		return d.SelectedEntities
	default:
		return d.SelectedBlocks
	}
}

// isBlank reports whether data holds no document at all.
func isBlank(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decode validates data against the schema and converts it. Missing fields
// keep their defaults.
func (s *Store) decode(data []byte) (selection.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return selection.Snapshot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if dec.More() {
		return selection.Snapshot{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	if err := s.schema.Validate(raw); err != nil {
		return selection.Snapshot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	doc := Document{DefaultColor: color.Default}
	if err := json.Unmarshal(data, &doc); err != nil {
		return selection.Snapshot{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return doc.Snapshot()
}

func encode(s selection.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(FromSnapshot(s), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
