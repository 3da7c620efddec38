package ttytee

import (
	"fmt"
	"log/slog"
	"os"
)

// Symlink is a scope-bound filesystem alias: a stable, user-chosen path
// pointing at the volatile OS-assigned path of an endpoint's consumer
// side. Callers defer Remove so the alias disappears on every exit
// path of the owning scope.
type Symlink struct {
	path    string
	created bool
	logger  *slog.Logger
}

// CreateSymlink links linkPath to target, replacing any pre-existing
// entry at linkPath (absence of one is fine). Creation failure is
// logged, not returned: the engine keeps running without the alias and
// consumers relying on the stable path simply fail to open it.
func CreateSymlink(target, linkPath string, logger *slog.Logger) *Symlink {
	os.Remove(linkPath) // stale link from a previous run, fine if absent
	s := &Symlink{path: linkPath, logger: logger}
	if err := os.Symlink(target, linkPath); err != nil {
		logger.Error("could not create symlink", "target", target, "link", linkPath, "error", err)
		return s
	}
	logger.Debug("symlink created", "target", target, "link", linkPath)
	s.created = true
	return s
}

// Remove deletes the alias. A link this guard created is expected to
// still exist; if it is gone, something else deleted it out from under
// us and the cleanup contract is broken, so Remove panics rather than
// papering over it. If creation failed there is nothing to remove.
func (s *Symlink) Remove() {
	if !s.created {
		return
	}
	if err := os.Remove(s.path); err != nil {
		panic(fmt.Sprintf("symlink %s vanished before cleanup: %v", s.path, err))
	}
	s.logger.Debug("symlink cleaned up", "link", s.path)
}
