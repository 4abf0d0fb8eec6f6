package changeset

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// GitResolver diffs two commits of a git repository.
type GitResolver struct {
	repo   *git.Repository
	filter Filter
}

// NewGitResolver creates a resolver over an opened repository.
func NewGitResolver(repo *git.Repository, dirs []string) *GitResolver {
	return &GitResolver{
		repo:   repo,
		filter: NewFilter(dirs),
	}
}

// OpenGitResolver opens the repository containing dir.
func OpenGitResolver(dir string, dirs []string) (*GitResolver, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", dir, err)
	}
	return NewGitResolver(repo, dirs), nil
}

// Changed returns files inserted or modified between before and after.
// Deletions are ignored; a rename shows up as an insertion of the new path.
func (r *GitResolver) Changed(ctx context.Context, before, after string) ([]string, error) {
	if IsZeroRevision(before) {
		return nil, nil
	}

	fromTree, err := r.tree(before)
	if err != nil {
		return nil, err
	}
	toTree, err := r.tree(after)
	if err != nil {
		return nil, err
	}

	changes, err := fromTree.DiffContext(ctx, toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", before, after, err)
	}

	var paths []string
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("failed to classify change: %w", err)
		}
		switch action {
		case merkletrie.Insert, merkletrie.Modify:
			paths = append(paths, change.To.Name)
		}
	}
	sort.Strings(paths)

	return r.filter.Apply(paths), nil
}

func (r *GitResolver) tree(rev string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree of %s: %w", hash, err)
	}
	return tree, nil
}
