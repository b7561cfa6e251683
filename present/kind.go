package present

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKind is returned for a visualization kind other than pressure,
// animation or error.
var ErrInvalidKind = errors.New("invalid visualization kind")

// Kind selects one of the three presentations.
type Kind int

const (
	KindPressure Kind = iota
	KindAnimation
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindPressure:
		return "pressure"
	case KindAnimation:
		return "animation"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindPressure || k == KindAnimation || k == KindError
}

// ParseKind maps a kind name to its Kind. Names are matched after trimming
// and lower-casing.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pressure":
		return KindPressure, nil
	case "animation":
		return KindAnimation, nil
	case "error":
		return KindError, nil
	}
	return 0, fmt.Errorf("%w: %q (choose pressure, animation or error)", ErrInvalidKind, s)
}
