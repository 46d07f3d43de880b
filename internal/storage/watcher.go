package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/graph"
)

// EventCallback is called after a watcher-driven graph change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on the graph directory and feeds record
// file changes into the store as external-origin mutations until ctx is
// cancelled. It calls cb (if non-nil) after each applied change.
//
// The engine's own persistence writes also surface here; the provider
// remembers the checksum of every record it wrote, so a write-back is
// recorded and skipped before it is decoded or re-applied. Rename and
// remove events schedule a short reconciliation pass, since fsnotify
// reports a rename on the old path only.
func Watch(ctx context.Context, s *graph.Store, fs *FS, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(fs.Root()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", fs.Root()))

	// seen holds the checksum of the last applied or written version of
	// each record, so echoes of our own writes are skipped.
	seen := make(map[string]string)
	if metas, listErr := fs.List(); listErr == nil {
		for _, m := range metas {
			seen[m.ID] = m.Checksum
		}
	}

	// reconcileTimer debounces rename/remove reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(s, fs, seen, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			base := filepath.Base(ev.Name)
			if !strings.HasSuffix(base, recordExt) || strings.HasPrefix(base, ".") {
				continue
			}
			id := strings.TrimSuffix(base, recordExt)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				applyRecord(s, fs, seen, id, logger, cb)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// The file may reappear under a new name; reconcile
				// instead of flagging the entity deleted right away.
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// applyRecord reads one record file and reconciles it into the store,
// unless its checksum matches the last applied version.
func applyRecord(s *graph.Store, fs *FS, seen map[string]string, id string, logger *slog.Logger, cb EventCallback) {
	data, err := fs.Read(id)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	cs := checksum.Sum(data)
	if seen[id] == cs {
		return
	}
	// The persister's own write-back: record it without re-applying.
	if fs.selfWrote(id, cs) {
		seen[id] = cs
		return
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		logger.Warn("watcher: undecodable record", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	if rec.ID == "" {
		rec.ID = id
	}

	s.Lock()
	existed := s.Get(id) != nil
	_, err = s.ApplyExternal(rec)
	s.Unlock()
	if err != nil {
		logger.Warn("watcher: apply failed", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	seen[id] = cs

	kind := "updated"
	if !existed {
		kind = "created"
	}
	logger.Debug("watcher: applied", slog.String("id", id), slog.String("op", kind))
	if cb != nil {
		cb(kind, id)
	}
}

// reconcile compares the graph directory against the store: records on
// disk that changed or appeared are applied, and entities whose record
// vanished are flagged deleted.
func reconcile(s *graph.Store, fs *FS, seen map[string]string, logger *slog.Logger, cb EventCallback) {
	metas, err := fs.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.ID] = m.Checksum
	}

	for id, cs := range disk {
		if seen[id] == cs {
			continue
		}
		applyRecord(s, fs, seen, id, logger, cb)
	}

	var gone []string
	s.Lock()
	for _, e := range s.All() {
		if e.Deleted {
			continue
		}
		if _, ok := disk[e.ID]; ok {
			continue
		}
		s.Delete(e, nil)
		gone = append(gone, e.ID)
	}
	s.Unlock()

	for _, id := range gone {
		delete(seen, id)
		logger.Debug("reconcile: flagged deleted", slog.String("id", id))
		if cb != nil {
			cb("deleted", id)
		}
	}
}
