package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("chatty"))
}

func TestSetLevelPropagatesToDerived(t *testing.T) {
	l := NewNop()
	child := l.With(String("component", "scanner"))

	l.SetLevel(LevelError)
	assert.Equal(t, LevelError, child.GetLevel())
}

func TestFieldConversion(t *testing.T) {
	fields := toZapFields(
		Int("radius", 32),
		String("color", "#FFFF0000"),
		Error(errors.New("boom")),
		Any("kinds", []string{"a"}),
	)

	assert.Len(t, fields, 4)
	assert.Equal(t, "radius", fields[0].Key)
	assert.Equal(t, "#FFFF0000", fields[1].String)
	assert.Equal(t, "error", fields[2].Key)
}
