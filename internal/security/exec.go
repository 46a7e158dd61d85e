package security

import (
	"fmt"
	"sort"
	"strings"
)

// CommandGuard validates command argv before it is handed to the OS.
// Commands are always run without a shell, so arguments only need to be free
// of control characters that would corrupt logs or git's own parsing.
type CommandGuard struct {
	// AllowedCommands is the set of executables that may be run.
	AllowedCommands map[string]bool
}

// NewGitGuard returns a guard that only permits the git executable.
func NewGitGuard() *CommandGuard {
	return &CommandGuard{
		AllowedCommands: map[string]bool{"git": true},
	}
}

// ValidateCommandParts validates a command before execution.
func (g *CommandGuard) ValidateCommandParts(cmdParts []string) error {
	if len(cmdParts) == 0 {
		return fmt.Errorf("empty command")
	}

	baseCmd := cmdParts[0]
	if !g.AllowedCommands[baseCmd] {
		return fmt.Errorf("command not allowed: %s (must be one of: %v)", baseCmd, g.allowedList())
	}

	for i, arg := range cmdParts[1:] {
		if containsControlChars(arg) {
			return fmt.Errorf("argument %d contains control characters: %q", i+1, arg)
		}
	}

	return nil
}

func (g *CommandGuard) allowedList() []string {
	commands := make([]string, 0, len(g.AllowedCommands))
	for cmd := range g.AllowedCommands {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	return commands
}

func containsControlChars(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r < 0x20 || r == 0x7f }) >= 0
}
