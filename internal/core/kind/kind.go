// Package kind identifies the item, entity and block types an outline can be
// attached to.
package kind

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultNamespace is assumed for identifiers written without one.
const DefaultNamespace = "minecraft"

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrUnknownCategory   = errors.New("unknown category")
)

// Category separates the item, entity and block namespaces.
type Category uint8

const (
	CategoryItem Category = iota
	CategoryEntity
	CategoryBlock
)

// Categories lists every category in persistence order.
var Categories = []Category{CategoryItem, CategoryEntity, CategoryBlock}

func (c Category) String() string {
	switch c {
	case CategoryItem:
		return "item"
	case CategoryEntity:
		return "entity"
	case CategoryBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Kind is a category-tagged namespaced identifier such as
// block/minecraft:diamond_ore. The zero value is not a valid Kind.
type Kind struct {
	Category Category
	Name     string
}

// Parse validates s and returns the Kind for it within cat. A missing
// namespace defaults to DefaultNamespace.
func Parse(cat Category, s string) (Kind, error) {
	if cat > CategoryBlock {
		return Kind{}, fmt.Errorf("%w: %d", ErrUnknownCategory, cat)
	}
	ns, path, ok := strings.Cut(s, ":")
	if !ok {
		ns, path = DefaultNamespace, s
	}
	if !validNamespace(ns) || !validPath(path) {
		return Kind{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return Kind{Category: cat, Name: ns + ":" + path}, nil
}

// MustParse is Parse for identifiers known at compile time.
func MustParse(cat Category, s string) Kind {
	k, err := Parse(cat, s)
	if err != nil {
		panic(err)
	}
	return k
}

func Item(name string) Kind   { return MustParse(CategoryItem, name) }
func Entity(name string) Kind { return MustParse(CategoryEntity, name) }
func Block(name string) Kind  { return MustParse(CategoryBlock, name) }

func (k Kind) Namespace() string {
	ns, _, _ := strings.Cut(k.Name, ":")
	return ns
}

func (k Kind) Path() string {
	_, path, _ := strings.Cut(k.Name, ":")
	return path
}

func (k Kind) IsZero() bool {
	return k.Name == ""
}

func (k Kind) String() string {
	return k.Category.String() + "/" + k.Name
}

// Hash is a stable 64-bit hash of (category, name).
func (k Kind) Hash() uint64 {
	var d xxhash.Digest
	d.Reset()
	_, _ = d.Write([]byte{byte(k.Category)})
	_, _ = d.WriteString(k.Name)
	return d.Sum64()
}

// Less orders kinds by category, then name.
func Less(a, b Kind) bool {
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return a.Name < b.Name
}

func validNamespace(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '-') {
			return false
		}
	}
	return true
}

func validPath(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '-' || c == '/') {
			return false
		}
	}
	return true
}
