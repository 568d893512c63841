package color

// Palette is the cycle offered when clicking through outline colours.
var Palette = []Swatch{
	{Name: "Red", Color: 0xFFFF0000},
	{Name: "Green", Color: 0xFF00FF00},
	{Name: "Blue", Color: 0xFF0000FF},
	{Name: "Yellow", Color: 0xFFFFFF00},
	{Name: "Magenta", Color: 0xFFFF00FF},
	{Name: "Cyan", Color: 0xFF00FFFF},
	{Name: "White", Color: 0xFFFFFFFF},
	{Name: "Orange", Color: 0xFFFF8000},
}

type Swatch struct {
	Name  string
	Color ARGB
}

// Next returns the palette colour after c, or the first one when c is not
// in the palette.
func Next(c ARGB) ARGB {
	for i, s := range Palette {
		if s.Color == c {
			return Palette[(i+1)%len(Palette)].Color
		}
	}
	return Palette[0].Color
}

// Name returns the palette name of c, "White" for colours outside it.
func Name(c ARGB) string {
	for _, s := range Palette {
		if s.Color == c {
			return s.Name
		}
	}
	return "White"
}
