// Package render turns a scan snapshot into per-kind outline batches that the
// host renderer draws each frame.
package render

import (
	"github.com/zeusync/glowline/internal/core/color"
	"github.com/zeusync/glowline/internal/core/kind"
	"github.com/zeusync/glowline/internal/core/scanner"
)

// Vec3 is a camera-relative offset.
type Vec3 struct {
	X, Y, Z float64
}

// Camera is the eye position in world coordinates.
type Camera struct {
	X, Y, Z float64
}

// Outline is one block to draw.
type Outline struct {
	Pos    scanner.Position
	Offset Vec3
}

// Batch is drawn with one outline colour.
type Batch struct {
	Kind  kind.Kind
	Color color.ARGB
	// R, G, B, A are the channels handed to the outline buffer.
	R, G, B, A uint8
	Outlines   []Outline
}

type ColorSource interface {
	ColorOf(k kind.Kind) color.ARGB
}

// Builder is used from the render thread only.
type Builder struct {
	colors ColorSource
}

func NewBuilder(colors ColorSource) *Builder {
	return &Builder{colors: colors}
}

// Build returns one batch per kind in kind order. Positions that turned into
// air after the scan are dropped, and batches left empty are omitted. A nil
// world skips the air check.
func (b *Builder) Build(res *scanner.Result, world scanner.World, cam Camera) []Batch {
	if res == nil || res.Empty() {
		return nil
	}
	out := make([]Batch, 0, res.Len())
	for _, k := range res.Kinds() {
		positions := res.Positions(k)
		outlines := make([]Outline, 0, len(positions))
		for _, p := range positions {
			if world != nil {
				if _, solid := world.BlockKindAt(p); !solid {
					continue
				}
			}
			outlines = append(outlines, Outline{
				Pos: p,
				Offset: Vec3{
					X: float64(p.X) - cam.X,
					Y: float64(p.Y) - cam.Y,
					Z: float64(p.Z) - cam.Z,
				},
			})
		}
		if len(outlines) == 0 {
			continue
		}
		c := b.colors.ColorOf(k)
		r, g, bl, a := c.Outline()
		out = append(out, Batch{Kind: k, Color: c, R: r, G: g, B: bl, A: a, Outlines: outlines})
	}
	return out
}

// Count is the number of outlines over all batches.
func Count(batches []Batch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Outlines)
	}
	return n
}
