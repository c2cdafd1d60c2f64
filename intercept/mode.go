package intercept

import "fmt"

// SecurityMode selects how low-trust packages gate command execution.
type SecurityMode string

const (
	// ModeInteractive prompts the user before allowing a risky install.
	ModeInteractive SecurityMode = "interactive"
	// ModeMonitor warns about risky installs but never blocks them.
	ModeMonitor SecurityMode = "monitor"
	// ModeBlock refuses risky installs without user interaction.
	ModeBlock SecurityMode = "block"
	// ModeDisabled allows every command without scoring.
	ModeDisabled SecurityMode = "disabled"
)

func ParseMode(s string) (SecurityMode, error) {
	switch SecurityMode(s) {
	case ModeInteractive, ModeMonitor, ModeBlock, ModeDisabled:
		return SecurityMode(s), nil
	}
	return "", fmt.Errorf("unknown security mode %q, expected interactive, monitor, block or disabled", s)
}
