package server

import (
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pullhook/internal/config"
	"pullhook/internal/deployment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func git(t *testing.T, dir string, args ...string) {
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
}

func writeAndCommit(t *testing.T, repo, name, content string) {
	t.Helper()
	path := filepath.Join(repo, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	git(t, repo, "add", name)
	git(t, repo, "commit", "-q", "-m", "update "+name)
}

// A signed push for the watched branch pulls the new commit into the checkout
// and touches every configured file.
func TestWebhook_EndToEnd(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	origin := filepath.Join(root, "origin.git")
	seed := filepath.Join(root, "seed")
	checkout := filepath.Join(root, "checkout")
	mainFile := "backend/src/main/java/com/example/counter/CounterBackendApplication.java"

	require.NoError(t, os.Mkdir(origin, 0755))
	git(t, origin, "init", "-q", "--bare")
	git(t, origin, "symbolic-ref", "HEAD", "refs/heads/main")

	require.NoError(t, os.Mkdir(seed, 0755))
	git(t, seed, "init", "-q")
	git(t, seed, "symbolic-ref", "HEAD", "refs/heads/main")
	writeAndCommit(t, seed, mainFile, "v1")
	writeAndCommit(t, seed, "frontend/index.html", "v1")
	git(t, seed, "remote", "add", "origin", origin)
	git(t, seed, "push", "-q", "origin", "main")
	git(t, root, "clone", "-q", origin, checkout)

	writeAndCommit(t, seed, mainFile, "v2")
	git(t, seed, "push", "-q", "origin", "main")

	touchPaths := []string{mainFile, "frontend/index.html"}
	for _, p := range touchPaths {
		require.NoError(t, os.Chtimes(filepath.Join(checkout, p), oldTime, oldTime))
	}

	cfg := &config.Config{
		Host:          "127.0.0.1",
		Port:          8081,
		RepoPath:      checkout,
		Branch:        "main",
		WebhookSecret: "abc",
		TouchPaths:    touchPaths,
	}
	deployer := deployment.NewDeployer(cfg.RepoPath, cfg.Branch, cfg.TouchPaths, deployment.NewSynchronizer(time.Minute), nil)
	srv := NewServer(cfg, deployer, nil, nil, nil)
	srv.RateLimit = 0
	env := &testEnv{server: srv, repo: checkout}

	start := time.Now().Add(-time.Second)
	rr := env.post(t, signedPush(`{"ref":"refs/heads/main"}`))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, MsgSuccess, rr.Body.String())

	content, err := os.ReadFile(filepath.Join(checkout, mainFile))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))

	for _, p := range touchPaths {
		info, err := os.Stat(filepath.Join(checkout, p))
		require.NoError(t, err)
		assert.True(t, info.ModTime().After(start), "%s not touched", p)
	}
}

func TestWebhook_EndToEndFetchFailure(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	checkout := t.TempDir()
	git(t, checkout, "init", "-q")
	git(t, checkout, "remote", "add", "origin", filepath.Join(t.TempDir(), "missing.git"))
	require.NoError(t, os.WriteFile(filepath.Join(checkout, "app.txt"), []byte("x"), 0644))
	require.NoError(t, os.Chtimes(filepath.Join(checkout, "app.txt"), oldTime, oldTime))

	cfg := &config.Config{RepoPath: checkout, Branch: "main", WebhookSecret: "abc", TouchPaths: []string{"app.txt"}}
	deployer := deployment.NewDeployer(cfg.RepoPath, cfg.Branch, cfg.TouchPaths, deployment.NewSynchronizer(time.Minute), nil)
	srv := NewServer(cfg, deployer, nil, nil, nil)
	srv.RateLimit = 0
	env := &testEnv{server: srv}

	rr := env.post(t, signedPush(`{"ref":"refs/heads/main"}`))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), MsgPullFailedText), rr.Body.String())
	assert.Contains(t, rr.Body.String(), "missing.git")

	info, err := os.Stat(filepath.Join(checkout, "app.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(oldTime))
}
