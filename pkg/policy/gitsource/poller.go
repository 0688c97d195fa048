package gitsource

import (
	"context"
	"log/slog"
	"time"
)

// Poller periodically pulls a Repository's tracked branch. It does not
// reload or validate policy itself: a successful pull changes files under
// Repository.PolicyPath(), and the ordinary fsnotify-based watch.Watcher
// pointed at that same path is what notices the change and reloads.
// Poller's only job is keeping the local clone fresh.
type Poller struct {
	repo     *Repository
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller constructs a Poller over repo. interval defaults to 30s if
// not positive.
func NewPoller(repo *Repository, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{repo: repo, interval: interval, logger: logger}
}

// Run polls until ctx is cancelled. Blocking; run it in its own goroutine.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pullOnce(ctx)
		}
	}
}

func (p *Poller) pullOnce(ctx context.Context) {
	result, err := p.repo.Pull(ctx)
	if err != nil {
		p.logger.Error("gitsource pull failed", "error", err)
		return
	}
	if !result.HadChanges {
		return
	}
	p.logger.Info("gitsource pulled new commit",
		"from_sha", result.FromSHA,
		"to_sha", result.ToSHA,
		"changed_files", len(result.ChangedFiles),
	)
}
