package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/glowline/internal/core/color"
	"github.com/zeusync/glowline/internal/core/events/bus"
	"github.com/zeusync/glowline/internal/core/kind"
	"github.com/zeusync/glowline/internal/core/selection"
)

func newStore(t *testing.T) (*Store, *selection.Registry) {
	t.Helper()
	reg := selection.New()
	s, err := New(filepath.Join(t.TempDir(), "config", "more-outlines-config.json"), reg,
		WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	return s, reg
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readDocument(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New("x.json", nil)
	assert.ErrorIs(t, err, ErrNilRegistry)
}

func TestLoadMissingCreatesDefaults(t *testing.T) {
	s, reg := newStore(t)
	reg.Toggle(kind.Block("stone"), color.White)

	assert.Equal(t, OutcomeCreated, s.Load())
	assert.False(t, reg.HasConfig(kind.Block("stone")))

	doc := readDocument(t, s.Path())
	assert.Equal(t, false, doc["outlinesEnabled"])
	assert.Equal(t, -1.0, doc["defaultColor"])
	assert.Equal(t, map[string]any{}, doc["selectedBlocks"])
}

func TestLoadEmptyWritesDefaults(t *testing.T) {
	for _, content := range []string{"", "  \n", "null"} {
		s, reg := newStore(t)
		write(t, s.Path(), content)

		assert.Equal(t, OutcomeEmpty, s.Load(), "content %q", content)
		assert.Equal(t, color.Default, reg.DefaultColor())
		assert.NoFileExists(t, s.BackupPath())
		assert.Contains(t, readDocument(t, s.Path()), "selectedItems")
	}
}

func TestLoadExistingDocument(t *testing.T) {
	s, reg := newStore(t)
	write(t, s.Path(), `{
  "outlinesEnabled": true,
  "defaultColor": -16711936,
  "selectedItems": {"minecraft:diamond": {"enabled": true, "color": -65536}},
  "selectedEntities": {"zombie": {"enabled": false, "color": 4278190335}},
  "selectedBlocks": null
}`)

	assert.Equal(t, OutcomeLoaded, s.Load())
	assert.True(t, reg.OutlinesEnabled())
	assert.Equal(t, color.ARGB(0xFF00FF00), reg.DefaultColor())
	assert.True(t, reg.IsSelected(kind.Item("diamond")))
	assert.Equal(t, color.ARGB(0xFFFF0000), reg.ColorOf(kind.Item("diamond")))
	assert.True(t, reg.HasConfig(kind.Entity("minecraft:zombie")))
	assert.False(t, reg.IsSelected(kind.Entity("zombie")))
	assert.Equal(t, color.ARGB(0xFF0000FF), reg.ColorOf(kind.Entity("zombie")))
	assert.Zero(t, reg.Len(kind.CategoryBlock))
}

func TestLoadMissingFieldsKeepDefaults(t *testing.T) {
	s, reg := newStore(t)
	write(t, s.Path(), `{"selectedBlocks": {"diamond_ore": {"enabled": true, "color": -1}}}`)

	assert.Equal(t, OutcomeLoaded, s.Load())
	assert.False(t, reg.OutlinesEnabled())
	assert.Equal(t, color.Default, reg.DefaultColor())
	assert.True(t, reg.IsSelected(kind.Block("diamond_ore")))
}

func TestLoadMalformedBacksUp(t *testing.T) {
	cases := map[string]string{
		"syntax":     `{"outlinesEnabled": tru`,
		"schema":     `{"outlinesEnabled": "yes"}`,
		"color":      `{"defaultColor": 1.5}`,
		"range":      `{"defaultColor": 4294967296}`,
		"identifier": `{"selectedBlocks": {"Minecraft:Stone!": {"enabled": true, "color": -1}}}`,
		"trailing":   `{} {}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			s, reg := newStore(t)
			write(t, s.Path(), content)

			assert.Equal(t, OutcomeRecovered, s.Load())
			assert.Equal(t, selection.DefaultSnapshot(), reg.Snapshot())

			backup, err := os.ReadFile(s.BackupPath())
			require.NoError(t, err)
			assert.Equal(t, content, string(backup))
			assert.Equal(t, -1.0, readDocument(t, s.Path())["defaultColor"])
		})
	}
}

func TestLoadUnreadableKeepsDefaults(t *testing.T) {
	s, reg := newStore(t)
	require.NoError(t, os.MkdirAll(s.Path(), 0o755))

	assert.Equal(t, OutcomeFailed, s.Load())
	assert.Equal(t, selection.DefaultSnapshot(), reg.Snapshot())
}

func TestSaveRoundTrip(t *testing.T) {
	s, reg := newStore(t)
	reg.SetOutlinesEnabled(true)
	reg.SetDefaultColor(0xFF123456)
	reg.Toggle(kind.Item("diamond"), 0xFFFF0000)
	reg.Toggle(kind.Entity("zombie"), color.White)
	reg.Toggle(kind.Entity("zombie"), color.White)
	reg.Toggle(kind.Block("create:brass_block"), 0x00ABCDEF)
	require.NoError(t, s.Save())

	doc := readDocument(t, s.Path())
	assert.Equal(t, map[string]any{"enabled": true, "color": -65536.0},
		doc["selectedItems"].(map[string]any)["minecraft:diamond"])

	other := selection.New()
	s2, err := New(s.Path(), other)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoaded, s2.Load())
	assert.Equal(t, reg.Snapshot(), other.Snapshot())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), "*.tmp*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files are cleaned up")
}

func TestAttachSavesOnSelectionChanged(t *testing.T) {
	s, reg := newStore(t)
	b := bus.New()
	_, err := s.Attach(b)
	require.NoError(t, err)
	reg.OnChange(func(c selection.Change) {
		_ = b.Publish(bus.NewEvent(bus.SelectionChanged, "test", c))
	})

	reg.Toggle(kind.Block("stone"), color.White)
	doc := readDocument(t, s.Path())
	assert.Contains(t, doc["selectedBlocks"], "minecraft:stone")

	reg.BeginBatch()
	reg.Toggle(kind.Block("dirt"), color.White)
	assert.NotContains(t, readDocument(t, s.Path())["selectedBlocks"], "minecraft:dirt")
	reg.EndBatch()
	assert.Contains(t, readDocument(t, s.Path())["selectedBlocks"], "minecraft:dirt")
}

func TestSummarize(t *testing.T) {
	s, reg := newStore(t)
	reg.Toggle(kind.Block("stone"), color.White)
	reg.Toggle(kind.Item("stick"), color.White)
	reg.SetDefaultColor(0)

	sum := Summarize(s.Path(), reg)
	assert.Equal(t, s.Path(), sum.File)
	assert.Equal(t, "#00000000", sum.DefaultColor)
	assert.Equal(t, 1, sum.Items)
	assert.Equal(t, 1, sum.Blocks)
	assert.Equal(t, 2, sum.Total)
	assert.Len(t, sum.Warnings, 1)
}

func TestWatchDeliversExternalEdits(t *testing.T) {
	s, reg := newStore(t)
	require.Equal(t, OutcomeCreated, s.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-s.watchReady:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not start")
	}

	// Own writes are not reported back.
	reg.Toggle(kind.Block("stone"), color.White)
	require.NoError(t, s.Save())
	select {
	case snap := <-s.Reloads():
		t.Fatalf("unexpected reload of own write: %+v", snap)
	case <-time.After(200 * time.Millisecond):
	}

	write(t, s.Path(), `{"outlinesEnabled": true, "selectedBlocks": {"gold_ore": {"enabled": true, "color": -256}}}`)
	select {
	case snap := <-s.Reloads():
		assert.True(t, snap.OutlinesEnabled)
		assert.Equal(t, selection.Entry{Enabled: true, Color: 0xFFFFFF00}, snap.Entries[kind.Block("gold_ore")])
	case <-time.After(3 * time.Second):
		t.Fatal("external edit not delivered")
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "recovered", OutcomeRecovered.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
