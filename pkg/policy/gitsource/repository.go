package gitsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"aegis-hq/aegis/pkg/config"
)

// Repository manages a local clone of a Git-backed policy repository.
type Repository struct {
	cfg       config.GitConfig
	localPath string
	auth      AuthProvider
	repo      *gogit.Repository
	mu        sync.RWMutex
	metrics   Metrics
}

// NewRepository validates cfg and constructs a Repository. Clone must be
// called before any other method.
func NewRepository(cfg config.GitConfig) (*Repository, error) {
	if cfg.Repo == "" {
		return nil, fmt.Errorf("gitsource: repository URL cannot be empty")
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	cfg.Branch = branch

	auth, err := NewAuthProvider(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("gitsource: build auth provider: %w", err)
	}

	localPath := cfg.Clone.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "aegis-policies")
	}

	return &Repository{cfg: cfg, localPath: localPath, auth: auth}, nil
}

// Clone clones the repository locally, or opens it in place if it was
// already cloned and CleanOnStart is false.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { r.metrics.CloneDuration = time.Since(start) }()

	if r.cfg.Clone.CleanOnStart {
		if err := os.RemoveAll(r.localPath); err != nil {
			return fmt.Errorf("clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return fmt.Errorf("open existing clone: %w", err)
		}
		r.repo = repo
		return nil
	}

	if err := os.MkdirAll(r.localPath, 0o755); err != nil {
		return fmt.Errorf("create clone directory: %w", err)
	}

	auth, err := r.auth.GetAuth()
	if err != nil {
		return fmt.Errorf("resolve git auth: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, r.pollTimeout())
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.localPath, false, &gogit.CloneOptions{
		URL:           r.cfg.Repo,
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  r.cfg.Clone.Depth > 0,
		Depth:         r.cfg.Clone.Depth,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("clone repository: %w", err)
	}
	r.repo = repo
	return nil
}

// Pull fetches and merges the tracked branch. It never forces and never
// rewrites history locally — a pull that cannot fast-forward is reported
// as an error, not resolved automatically.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		r.metrics.PullDuration = time.Since(start)
		r.metrics.LastPullTime = time.Now()
	}()

	if r.repo == nil {
		return nil, fmt.Errorf("gitsource: Clone must be called before Pull")
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	fromSHA := ref.Hash().String()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("read worktree: %w", err)
	}

	auth, err := r.auth.GetAuth()
	if err != nil {
		return nil, fmt.Errorf("resolve git auth: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, r.pollTimeout())
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{RemoteName: "origin", Auth: auth})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		r.metrics.FailedPulls++
		return nil, fmt.Errorf("pull: %w", err)
	}
	r.metrics.SuccessfulPulls++

	newRef, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read new HEAD: %w", err)
	}
	toSHA := newRef.Hash().String()

	result := &PullResult{FromSHA: fromSHA, ToSHA: toSHA, HadChanges: fromSHA != toSHA}
	if result.HadChanges {
		files, err := r.changedFilesLocked(fromSHA, toSHA)
		if err != nil {
			return nil, fmt.Errorf("diff commits: %w", err)
		}
		result.ChangedFiles = files
		r.metrics.LastCommitSHA = toSHA
	}
	return result, nil
}

// CurrentCommit returns metadata about HEAD.
func (r *Repository) CurrentCommit() (*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, fmt.Errorf("gitsource: Clone must be called first")
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read commit: %w", err)
	}
	return &CommitInfo{
		SHA:        commit.Hash.String(),
		Author:     commit.Author.Name,
		Email:      commit.Author.Email,
		Timestamp:  commit.Author.When,
		Message:    commit.Message,
		Branch:     r.cfg.Branch,
		Repository: r.cfg.Repo,
	}, nil
}

// CommitHistory returns up to limit of the most recent commits, newest
// first.
func (r *Repository) CommitHistory(limit int) ([]*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, fmt.Errorf("gitsource: Clone must be called first")
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read commit log: %w", err)
	}

	var history []*CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if len(history) >= limit {
			return fmt.Errorf("limit reached")
		}
		history = append(history, &CommitInfo{
			SHA:        c.Hash.String(),
			Author:     c.Author.Name,
			Email:      c.Author.Email,
			Timestamp:  c.Author.When,
			Message:    c.Message,
			Branch:     r.cfg.Branch,
			Repository: r.cfg.Repo,
		})
		return nil
	})
	if err != nil && err.Error() != "limit reached" {
		return nil, fmt.Errorf("iterate commit log: %w", err)
	}
	return history, nil
}

// changedFilesLocked diffs two commits. Callers must hold r.mu.
func (r *Repository) changedFilesLocked(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("read from-commit: %w", err)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("read to-commit: %w", err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read from-tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read to-tree: %w", err)
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	var files []string
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// PolicyPath returns the local filesystem path the loader and Watcher
// should treat as the policy directory.
func (r *Repository) PolicyPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filepath.Join(r.localPath, r.cfg.Path)
}

// GetMetrics returns a snapshot of cumulative clone/pull counters.
func (r *Repository) GetMetrics() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}

func (r *Repository) pollTimeout() time.Duration {
	if r.cfg.PollTimeout > 0 {
		return r.cfg.PollTimeout
	}
	return 10 * time.Second
}
