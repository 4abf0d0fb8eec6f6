package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lystaria/site-service/internal/models"
)

func clearAnnounceEnv(t *testing.T) {
	for _, key := range []string{
		"ANNOUNCE_ENDPOINT", "ANNOUNCE_SECRET", "SITE_URL", "CONTENT_DIRS",
		"PUSH_WEBHOOK_URL", "PUSH_WEBHOOK_SECRET", "CHANGED_FILES", "REPO_PATH",
		"RETRY_COUNT", "RETRY_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestRootCmd_AnnouncesChangedFiles(t *testing.T) {
	clearAnnounceEnv(t)

	var got []models.Announcement
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "env-secret", r.Header.Get("X-Shared-Secret"))
		var a models.Announcement
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		got = append(got, a)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	repo := t.TempDir()
	writeFile(t, repo, "src/content/posts/moon/index.md", "---\ntitle: Moon\n---\n")

	t.Setenv("ANNOUNCE_ENDPOINT", server.URL)
	t.Setenv("ANNOUNCE_SECRET", "env-secret")
	t.Setenv("SITE_URL", "https://lystaria.im/")
	t.Setenv("CONTENT_DIRS", "src/content/posts=/blog")
	t.Setenv("CHANGED_FILES", "src/content/posts/moon/index.md\nsrc/pages/index.astro")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--repo", repo, "aaa", "bbb"})
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	require.NoError(t, cmd.Execute())
	require.Len(t, got, 1)
	assert.Equal(t, "https://lystaria.im/blog/moon", got[0].Post.URL)
	assert.Equal(t, "Moon", got[0].Post.Title)
	assert.Equal(t, "bbb", got[0].SHA)
	assert.Contains(t, stderr.String(), "announce finished")
}

func TestRootCmd_FlagsOverrideEnv(t *testing.T) {
	clearAnnounceEnv(t)

	var secret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Shared-Secret")
	}))
	defer server.Close()

	repo := t.TempDir()
	writeFile(t, repo, "posts/a.md", "# A")

	t.Setenv("ANNOUNCE_ENDPOINT", "http://127.0.0.1:1")
	t.Setenv("ANNOUNCE_SECRET", "env-secret")

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--endpoint", server.URL,
		"--secret", "flag-secret",
		"--site-url", "https://example.com",
		"--content-dirs", "posts=/blog",
		"--changed-files", "posts/a.md",
		"--repo", repo,
		"aaa", "bbb",
	})
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "flag-secret", secret)
}

func TestRootCmd_MissingConfig(t *testing.T) {
	clearAnnounceEnv(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"aaa", "bbb"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required settings: ANNOUNCE_ENDPOINT, ANNOUNCE_SECRET, SITE_URL, CONTENT_DIRS")
}

func TestRootCmd_RequiresTwoRevisions(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"aaa"})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}

func TestRootCmd_DeliveryFailureFails(t *testing.T) {
	clearAnnounceEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	repo := t.TempDir()
	writeFile(t, repo, "posts/a.md", "# A")

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--endpoint", server.URL,
		"--secret", "wrong",
		"--site-url", "https://example.com",
		"--content-dirs", "posts=/blog",
		"--changed-files", "posts/a.md",
		"--repo", repo,
		"aaa", "bbb",
	})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
