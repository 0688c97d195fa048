// Package gitsource provides an alternative Policy Source backed by a Git
// repository instead of a local directory. A Repository clones and
// periodically pulls a branch to local disk; the existing fsnotify-based
// watch.Watcher then watches that same local path exactly as it would any
// other policy directory, so a successful pull is all gitsource needs to
// trigger — it never calls the loader or the Index itself.
//
// Rollback-on-validation-failure is intentionally not implemented:
// gitsource always pulls forward. If a pulled commit produces a policy
// set the loader rejects, the Watcher's existing per-file-drop behavior
// and the previous in-memory snapshot are what keep the gateway serving,
// not a repository checkout reversal.
package gitsource
