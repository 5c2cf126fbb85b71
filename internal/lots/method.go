package lots

import "fmt"

// SelectionMethod determines the order in which lots are consumed by a
// disposal.
type SelectionMethod int

const (
	// FIFO consumes the oldest acquisitions first.
	FIFO SelectionMethod = iota
	// LIFO consumes the newest acquisitions first.
	LIFO
	// LowestBasis consumes the cheapest acquisitions first.
	LowestBasis
	// HighestBasis consumes the most expensive acquisitions first.
	HighestBasis
	// Manual consumes exactly the caller-supplied lot numbers.
	Manual
)

func (m SelectionMethod) String() string {
	switch m {
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	case LowestBasis:
		return "lowest-basis"
	case HighestBasis:
		return "highest-basis"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseMethod parses a string into a SelectionMethod.
func ParseMethod(s string) (SelectionMethod, error) {
	switch s {
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	case "lowest-basis":
		return LowestBasis, nil
	case "highest-basis":
		return HighestBasis, nil
	case "manual":
		return Manual, nil
	default:
		return 0, fmt.Errorf("unknown lot selection method: %q", s)
	}
}
