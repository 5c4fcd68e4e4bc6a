package entities

import "fmt"

// Mode selects how much instrumentation is injected into the package.
type Mode string

const (
	// ModeDebug injects the base debugging overlay only
	ModeDebug Mode = "debug"

	// ModeSandbox adds the security-bypass overlay on top of the debug base
	ModeSandbox Mode = "sandbox"

	// ModeCombined enables both the debug and sandbox overlay sets
	ModeCombined Mode = "combined"
)

// ParseMode converts a string into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDebug, ModeSandbox, ModeCombined:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want debug, sandbox or combined)", s)
	}
}

// Extended reports whether the mode carries the security-bypass superset
func (m Mode) Extended() bool {
	return m == ModeSandbox || m == ModeCombined
}
