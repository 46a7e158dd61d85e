package security

import (
	"path/filepath"
	"testing"
)

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr bool
	}{
		{"simple", "main", false},
		{"with slash", "feature/login", false},
		{"with dots and dashes", "release-1.2.3", false},
		{"with underscore", "hot_fix", false},
		{"plus", "feature+x", false},
		{"at sign", "user@fix", false},
		{"hash", "fix#12", false},
		{"semicolon", "main;id", false},
		{"dollar parens", "$(whoami)", false},

		{"empty", "", true},
		{"leading dash", "-upload-pack=evil", true},
		{"double dot", "main..dev", true},
		{"space", "main branch", true},
		{"wildcard", "*", true},
		{"question mark", "fix?", true},
		{"bracket", "fix[1]", true},
		{"backslash", `fix\x`, true},
		{"tilde", "main~1", true},
		{"caret", "main^", true},
		{"colon", "a:b", true},
		{"control character", "main\tdev", true},
		{"reflog syntax", "main@{1}", true},
		{"lone at", "@", true},
		{"trailing slash", "feature/", true},
		{"leading slash", "/feature", true},
		{"double slash", "feature//x", true},
		{"trailing dot", "release.", true},
		{"dot component", "feature/.hidden", true},
		{"lock suffix", "main.lock", true},
		{"lock component", "feature.lock/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranchName(tt.branch)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBranchName(%q) error = %v, wantErr %v", tt.branch, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWatchedBranch(t *testing.T) {
	if err := ValidateWatchedBranch(WildcardBranch); err != nil {
		t.Errorf("wildcard should be accepted, got %v", err)
	}
	if err := ValidateWatchedBranch("main"); err != nil {
		t.Errorf("main should be accepted, got %v", err)
	}
	if err := ValidateWatchedBranch("-x"); err == nil {
		t.Error("leading dash should be rejected")
	}
}

func TestResolveWithin(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr bool
	}{
		{"file at root", "app.py", filepath.Join(base, "app.py"), false},
		{"nested file", "src/main/App.java", filepath.Join(base, "src", "main", "App.java"), false},
		{"dot segments that stay inside", "src/../app.py", filepath.Join(base, "app.py"), false},
		{"file named with dots", "..hidden", filepath.Join(base, "..hidden"), false},

		{"parent escape", "../outside.txt", "", true},
		{"deep escape", "src/../../outside.txt", "", true},
		{"absolute path", "/etc/passwd", "", true},
		{"parent only", "..", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWithin(base, tt.rel)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveWithin(%q) error = %v, wantErr %v", tt.rel, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ResolveWithin(%q) = %q, want %q", tt.rel, got, tt.want)
			}
		})
	}
}
