package filerepo

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/rs/zerolog/log"
)

// Watch calls onChange whenever the credential document changes on disk,
// including changes made by another process. The directory is watched rather
// than the file because writes replace the file by rename. Watch blocks until
// ctx is done.
func (r *Repo) Watch(ctx context.Context, onChange func(credentials.Record)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("[filerepo Watch] creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("[filerepo Watch] watching %s: %w", filepath.Dir(r.path), err)
	}

	last, err := r.Get(ctx)
	if err != nil {
		return err
	}
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			current, err := r.Get(ctx)
			if err != nil {
				log.Err(err).Str("path", r.path).Msg("Failed to reload credentials after change")
				continue
			}
			if current == last {
				continue
			}
			last = current
			onChange(current)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Err(err).Str("path", r.path).Msg("Credential watch error")
		}
	}
}
