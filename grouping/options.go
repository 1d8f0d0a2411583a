package grouping

import (
	"fmt"
	"strings"
)

// Strategy decides what happens to students left over once every full group
// has been filled.
type Strategy string

const (
	// AllowSmaller puts the leftovers into one extra, smaller group.
	AllowSmaller Strategy = "allow-smaller"
	// Distribute adds the leftovers one by one to the existing groups.
	Distribute Strategy = "distribute"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{AllowSmaller, Distribute}

// ParseStrategy converts user input into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case AllowSmaller:
		return AllowSmaller, nil
	case Distribute:
		return Distribute, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	return s == AllowSmaller || s == Distribute
}

// Options configures a single Partition call.
type Options struct {
	GroupSize int      `json:"groupSize"`
	Strategy  Strategy `json:"strategy"`
}

// Validate checks the options without touching any input.
func (o Options) Validate() error {
	if o.GroupSize < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidGroupSize, o.GroupSize)
	}
	if !o.Strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, string(o.Strategy))
	}
	return nil
}
