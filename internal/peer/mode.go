package peer

import (
	"fmt"
	"strings"
)

// Mode is a listener lifecycle policy.
type Mode int

const (
	// Multi keeps accepting connections until shut down.
	Multi Mode = iota
	// Single accepts one connection, then stops listening.
	Single
	// Once accepts one connection and shuts the whole server down
	// when that connection closes.
	Once
)

func (m Mode) String() string {
	switch m {
	case Multi:
		return "multi"
	case Single:
		return "single"
	case Once:
		return "once"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts "once", "single" or "multi" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "multi", "":
		return Multi, nil
	case "single":
		return Single, nil
	case "once":
		return Once, nil
	}
	return 0, fmt.Errorf("unknown listener mode %q", s)
}
