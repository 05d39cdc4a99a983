package window

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSelector marks a malformed user-supplied range or count.
// Callers report it back with a corrective hint instead of logging it
// as a failure.
var ErrInvalidSelector = errors.New("invalid selector")

type SelectorKind int

const (
	SelectorHours SelectorKind = iota
	SelectorCount
)

// Selector is the tagged union decided once at the command boundary:
// either a trailing time range in hours ("24h") or a message count ("500").
type Selector struct {
	Kind  SelectorKind
	Hours int
	Count int
}

func HoursSelector(hours int) Selector {
	return Selector{Kind: SelectorHours, Hours: hours}
}

func CountSelector(count int) Selector {
	return Selector{Kind: SelectorCount, Count: count}
}

// ParseSelector accepts the two user-facing forms: "<n>h" for a trailing
// window in hours and a bare positive integer for a latest-N window.
func ParseSelector(arg string) (Selector, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Selector{}, fmt.Errorf("%w: empty argument", ErrInvalidSelector)
	}

	if strings.HasSuffix(arg, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(arg, "h"))
		if err != nil || hours <= 0 {
			return Selector{}, fmt.Errorf("%w: hours must be a positive number, got %q", ErrInvalidSelector, arg)
		}
		return HoursSelector(hours), nil
	}

	count, err := strconv.Atoi(arg)
	if err != nil || count <= 0 {
		return Selector{}, fmt.Errorf("%w: count must be a positive integer, got %q", ErrInvalidSelector, arg)
	}
	return CountSelector(count), nil
}
