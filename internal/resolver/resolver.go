// Package resolver maps a public hash plus a requested relative path to a
// servable outcome: a confined file, an external redirect, or a categorized
// not-found.
package resolver

import (
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/hashgen"
	"github.com/staticnest/staticnest/internal/metadata"
	"github.com/staticnest/staticnest/pkg/models"
)

// Kind discriminates resolution outcomes.
type Kind int

const (
	KindFile Kind = iota
	KindRedirect
	KindNotFound
)

// Not-found reasons, kept distinct for diagnostics. All render as the same
// 404-style response and never carry filesystem paths to the client.
const (
	ReasonProjectNotFound = "Project not found"
	ReasonInvalidPath     = "Invalid path"
	ReasonFileNotFound    = "File not found"
)

// Outcome is the result of resolving a public request.
type Outcome struct {
	Kind Kind

	// Path and ContentType are set for KindFile.
	Path        string
	ContentType string

	// Location is set for KindRedirect.
	Location string

	// Reason is set for KindNotFound.
	Reason string
}

// Resolver resolves public file requests against the registry and the
// per-project directories.
type Resolver struct {
	store       *metadata.Store
	projectsDir string
	log         *zap.Logger
}

func New(store *metadata.Store, projectsDir string, log *zap.Logger) *Resolver {
	return &Resolver{store: store, projectsDir: projectsDir, log: log}
}

// Resolve maps (publicHash, requested) to an outcome. The requested path is
// confined to the project directory: any traversal attempt yields the
// invalid-path outcome regardless of whether the escaped target exists.
func (r *Resolver) Resolve(hash, requested string) Outcome {
	// Malformed hashes never reach the registry.
	if !hashgen.IsValidToken(hash) {
		return Outcome{Kind: KindNotFound, Reason: ReasonProjectNotFound}
	}

	project, err := r.store.GetByPublicHash(hash)
	if err != nil {
		return Outcome{Kind: KindNotFound, Reason: ReasonProjectNotFound}
	}

	// External projects redirect wholesale, the requested path is ignored.
	if project.Type == models.TypeExternal {
		return Outcome{Kind: KindRedirect, Location: project.ExternalURL}
	}

	requested = strings.Trim(requested, "/")
	if requested == "" {
		requested = "index.html"
	}

	root := filepath.Join(r.projectsDir, project.ID)

	abs, err := r.containedPath(root, requested)
	if err != nil {
		r.log.Warn("rejected path traversal attempt",
			zap.String("project", project.ID),
			zap.String("requested", requested))
		return Outcome{Kind: KindNotFound, Reason: ReasonInvalidPath}
	}

	if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
		return fileOutcome(abs)
	}

	// Directory-index fallback: extensionless misses retry as a directory
	// holding an index.html.
	if path.Ext(requested) == "" {
		idx, err := r.containedPath(root, path.Join(requested, "index.html"))
		if err == nil {
			if info, err := os.Stat(idx); err == nil && info.Mode().IsRegular() {
				return fileOutcome(idx)
			}
		}
	}

	return Outcome{Kind: KindNotFound, Reason: ReasonFileNotFound}
}

// containedPath joins requested onto root and verifies the result stays
// strictly inside root. The lexical check rejects traversal outright; the
// final path comes from SecureJoin so symlinks inside uploaded content
// cannot escape either.
func (r *Resolver) containedPath(root, requested string) (string, error) {
	joined := filepath.Join(root, filepath.FromSlash(requested))
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project directory", requested)
	}
	return securejoin.SecureJoin(root, filepath.FromSlash(requested))
}

func fileOutcome(abs string) Outcome {
	contentType := mime.TypeByExtension(filepath.Ext(abs))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Outcome{Kind: KindFile, Path: abs, ContentType: contentType}
}
