// Package changeset computes which content files were added or modified
// between two revisions.
package changeset

import (
	"context"
	"path"
	"strings"
)

// ZeroRevision is the marker CI sends as "before" when there is no prior
// revision, e.g. on the first push of a branch.
const ZeroRevision = "0000000000000000000000000000000000000000"

// MaxContentDirs is the number of content directories a resolver watches.
const MaxContentDirs = 2

var markdownExts = map[string]bool{
	".md":       true,
	".mdx":      true,
	".markdown": true,
}

// Resolver lists added or modified content files between two revisions.
type Resolver interface {
	Changed(ctx context.Context, before, after string) ([]string, error)
}

// IsZeroRevision reports whether rev is the all-zero "no prior revision" marker.
func IsZeroRevision(rev string) bool {
	rev = strings.TrimSpace(rev)
	return rev != "" && strings.Trim(rev, "0") == ""
}

// Filter keeps markdown-like files under one of dirs, preserving order and
// dropping duplicates.
type Filter struct {
	dirs []string
}

// NewFilter normalises dirs into path prefixes. Only the first MaxContentDirs
// non-empty entries are used.
func NewFilter(dirs []string) Filter {
	f := Filter{}
	for _, d := range dirs {
		d = strings.Trim(path.Clean("/"+strings.TrimSpace(d)), "/")
		if d == "" || d == "." {
			continue
		}
		f.dirs = append(f.dirs, d+"/")
		if len(f.dirs) == MaxContentDirs {
			break
		}
	}
	return f
}

// Dirs returns the watched directories without trailing slashes.
func (f Filter) Dirs() []string {
	out := make([]string, len(f.dirs))
	for i, d := range f.dirs {
		out[i] = strings.TrimSuffix(d, "/")
	}
	return out
}

// Apply filters paths.
func (f Filter) Apply(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		if p == "" || seen[p] || !f.Match(p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Match reports whether p is a markdown-like file under a watched directory.
func (f Filter) Match(p string) bool {
	if !markdownExts[strings.ToLower(path.Ext(p))] {
		return false
	}
	for _, d := range f.dirs {
		if strings.HasPrefix(p, d) {
			return true
		}
	}
	return false
}

// ListResolver resolves changes from a precomputed newline-separated file
// list, as exported by CI in CHANGED_FILES.
type ListResolver struct {
	files  []string
	filter Filter
}

// NewListResolver creates a resolver over a newline-separated list.
func NewListResolver(list string, dirs []string) *ListResolver {
	return &ListResolver{
		files:  strings.Split(list, "\n"),
		filter: NewFilter(dirs),
	}
}

// Changed returns the filtered list. The revisions are only consulted for
// the zero-revision rule.
func (r *ListResolver) Changed(_ context.Context, before, _ string) ([]string, error) {
	if IsZeroRevision(before) {
		return nil, nil
	}
	return r.filter.Apply(r.files), nil
}
