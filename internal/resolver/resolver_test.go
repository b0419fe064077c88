package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/metadata"
	"github.com/staticnest/staticnest/pkg/models"
)

const (
	testID   = "a1b2c3d4e5f60718"
	testHash = "aabbccddeeff"
)

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()

	store, err := metadata.NewStore(filepath.Join(dir, "metadata.json"), zap.NewNop())
	require.NoError(t, err)

	projectsDir := filepath.Join(dir, "projects")
	_, err = store.Create(&models.Project{
		ID:         testID,
		Name:       "Demo",
		Type:       models.TypeHosted,
		PublicHash: testHash,
	})
	require.NoError(t, err)
	_, err = store.Create(&models.Project{
		ID:          "ffeeddccbbaa9988",
		Name:        "Blog",
		Type:        models.TypeExternal,
		ExternalURL: "https://example.com",
		PublicHash:  "",
	})
	require.NoError(t, err)

	root := filepath.Join(projectsDir, testID)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>Welcome to Demo</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "style.css"), []byte("body {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "index.html"), []byte("docs index"), 0o644))

	return New(store, projectsDir, zap.NewNop()), root
}

func TestResolve_ServesFile(t *testing.T) {
	r, root := newTestResolver(t)

	outcome := r.Resolve(testHash, "style.css")
	require.Equal(t, KindFile, outcome.Kind)
	require.Equal(t, filepath.Join(root, "style.css"), outcome.Path)
	require.Contains(t, outcome.ContentType, "text/css")
}

func TestResolve_EmptyPathDefaultsToIndex(t *testing.T) {
	r, root := newTestResolver(t)

	outcome := r.Resolve(testHash, "")
	require.Equal(t, KindFile, outcome.Kind)
	require.Equal(t, filepath.Join(root, "index.html"), outcome.Path)
}

func TestResolve_DirectoryIndexFallback(t *testing.T) {
	r, root := newTestResolver(t)

	outcome := r.Resolve(testHash, "docs")
	require.Equal(t, KindFile, outcome.Kind)
	require.Equal(t, filepath.Join(root, "docs", "index.html"), outcome.Path)
}

func TestResolve_UnknownHash(t *testing.T) {
	r, _ := newTestResolver(t)

	outcome := r.Resolve("000000000000", "index.html")
	require.Equal(t, KindNotFound, outcome.Kind)
	require.Equal(t, ReasonProjectNotFound, outcome.Reason)
}

// Hashes that could never have been generated are refused before any
// registry lookup.
func TestResolve_MalformedHash(t *testing.T) {
	r, _ := newTestResolver(t)

	for _, hash := range []string{
		"",
		"short",
		"AABBCCDDEEFF",
		"../aabbccddee",
		"aabbccddeeff00112233445566",
	} {
		outcome := r.Resolve(hash, "index.html")
		require.Equal(t, KindNotFound, outcome.Kind, "hash %q", hash)
		require.Equal(t, ReasonProjectNotFound, outcome.Reason, "hash %q", hash)
	}
}

func TestResolve_MissingFile(t *testing.T) {
	r, _ := newTestResolver(t)

	outcome := r.Resolve(testHash, "nope.html")
	require.Equal(t, KindNotFound, outcome.Kind)
	require.Equal(t, ReasonFileNotFound, outcome.Reason)
}

// Traversal attempts are rejected unconditionally, whether or not the
// escaped target exists.
func TestResolve_RejectsTraversal(t *testing.T) {
	r, root := newTestResolver(t)

	// A real file one level above the project root.
	secret := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o644))

	attempts := []string{
		"../secret.txt",
		"../../etc/passwd",
		"docs/../../secret.txt",
		"..",
		"docs/../../../server.js",
	}
	for _, attempt := range attempts {
		outcome := r.Resolve(testHash, attempt)
		require.Equal(t, KindNotFound, outcome.Kind, "path %q must not resolve", attempt)
		require.Equal(t, ReasonInvalidPath, outcome.Reason, "path %q", attempt)
	}
}

func TestResolve_ExternalProjectRedirects(t *testing.T) {
	dir := t.TempDir()
	store, err := metadata.NewStore(filepath.Join(dir, "metadata.json"), zap.NewNop())
	require.NoError(t, err)

	// External projects normally carry no hash; give this one a hash to
	// exercise the redirect branch directly.
	_, err = store.Create(&models.Project{
		ID:          "ffeeddccbbaa9988",
		Name:        "Blog",
		Type:        models.TypeExternal,
		ExternalURL: "https://example.com",
		PublicHash:  "112233445566",
	})
	require.NoError(t, err)

	r := New(store, filepath.Join(dir, "projects"), zap.NewNop())

	// The requested path is irrelevant for external projects.
	for _, path := range []string{"", "index.html", "deep/nested/path"} {
		outcome := r.Resolve("112233445566", path)
		require.Equal(t, KindRedirect, outcome.Kind)
		require.Equal(t, "https://example.com", outcome.Location)
	}
}

func TestResolve_AbsentDirectoryIsFileNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := metadata.NewStore(filepath.Join(dir, "metadata.json"), zap.NewNop())
	require.NoError(t, err)

	// Registered but its directory was never created.
	_, err = store.Create(&models.Project{
		ID:         testID,
		Name:       "Empty",
		Type:       models.TypeHosted,
		PublicHash: testHash,
	})
	require.NoError(t, err)

	r := New(store, filepath.Join(dir, "projects"), zap.NewNop())
	outcome := r.Resolve(testHash, "index.html")
	require.Equal(t, KindNotFound, outcome.Kind)
	require.Equal(t, ReasonFileNotFound, outcome.Reason)
}
