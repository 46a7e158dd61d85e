package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// WildcardBranch in the watched-branch setting matches every pushed branch.
const WildcardBranch = "*"

// ValidateBranchName applies git's check-ref-format rules for branch names and
// rejects a leading '-' so the name can never be read as an option.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}
	if branch == "@" {
		return fmt.Errorf("branch name cannot be '@'")
	}
	if strings.Contains(branch, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}
	if strings.Contains(branch, "@{") {
		return fmt.Errorf("branch name cannot contain '@{'")
	}
	for _, r := range branch {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(" ~^:?*[\\", r) {
			return fmt.Errorf("branch name contains invalid character %q", r)
		}
	}
	if strings.HasSuffix(branch, ".") {
		return fmt.Errorf("branch name cannot end with '.'")
	}
	for _, component := range strings.Split(branch, "/") {
		switch {
		case component == "":
			return fmt.Errorf("branch name cannot have empty path components")
		case strings.HasPrefix(component, "."):
			return fmt.Errorf("branch name components cannot start with '.'")
		case strings.HasSuffix(component, ".lock"):
			return fmt.Errorf("branch name components cannot end with '.lock'")
		}
	}
	return nil
}

// ValidateWatchedBranch accepts either the wildcard or a valid branch name.
func ValidateWatchedBranch(branch string) error {
	if branch == WildcardBranch {
		return nil
	}
	return ValidateBranchName(branch)
}

// ResolveWithin joins rel onto base and ensures the result stays inside base.
// Absolute rel values and ".." escapes are rejected.
func ResolveWithin(base, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path must be relative: %s", rel)
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	joined := filepath.Join(absBase, rel)
	relPath, err := filepath.Rel(absBase, joined)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: '%s' is outside '%s'", rel, absBase)
	}

	return joined, nil
}
