package domain

import (
	"fmt"
	"strings"
)

// Mode selects an independent prompt and transcript context.
type Mode string

const (
	ModeChild  Mode = "child"
	ModeParent Mode = "parent"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeChild, ModeParent}

// ParseMode parses a query value. An empty value selects child mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeChild:
		return ModeChild, nil
	case ModeParent:
		return ModeParent, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unknown mode %q: expected child or parent", s))
	}
}

func (m Mode) String() string { return string(m) }
