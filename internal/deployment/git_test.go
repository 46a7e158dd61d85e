package deployment

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testRepos is a bare origin, a seed clone used to publish commits and the
// checkout that gets synchronised.
type testRepos struct {
	Origin   string
	Seed     string
	Checkout string
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=pullhook",
		"GIT_AUTHOR_EMAIL=pullhook@example.com",
		"GIT_COMMITTER_NAME=pullhook",
		"GIT_COMMITTER_EMAIL=pullhook@example.com",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func commitFile(t *testing.T, repo, name, content string) string {
	t.Helper()
	path := filepath.Join(repo, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	gitCmd(t, repo, "add", name)
	gitCmd(t, repo, "commit", "-q", "-m", "update "+name)
	return gitCmd(t, repo, "rev-parse", "HEAD")
}

func setupTestRepos(t *testing.T) *testRepos {
	t.Helper()
	requireGit(t)

	root := t.TempDir()
	repos := &testRepos{
		Origin:   filepath.Join(root, "origin.git"),
		Seed:     filepath.Join(root, "seed"),
		Checkout: filepath.Join(root, "checkout"),
	}

	require.NoError(t, os.Mkdir(repos.Origin, 0755))
	gitCmd(t, repos.Origin, "init", "-q", "--bare")
	gitCmd(t, repos.Origin, "symbolic-ref", "HEAD", "refs/heads/main")

	require.NoError(t, os.Mkdir(repos.Seed, 0755))
	gitCmd(t, repos.Seed, "init", "-q")
	gitCmd(t, repos.Seed, "symbolic-ref", "HEAD", "refs/heads/main")
	commitFile(t, repos.Seed, "app/App.java", "v1")
	gitCmd(t, repos.Seed, "remote", "add", "origin", repos.Origin)
	gitCmd(t, repos.Seed, "push", "-q", "origin", "main")

	gitCmd(t, root, "clone", "-q", repos.Origin, repos.Checkout)

	return repos
}
