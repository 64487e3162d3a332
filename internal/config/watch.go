package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the saved policy whenever its file changes, until ctx is cancelled. The parent
// directory is watched so atomic rename-based writes are seen. Files that fail to parse or
// validate are logged and leave the active policy unchanged.
func (s *Store) Watch(ctx context.Context) error {
	if s.savedPath == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.savedPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(s.savedPath)
	s.logger.Debug("watching saved search config", zap.String("path", target))

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			s.reloadSaved()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.logger.Debug("config watcher error", zap.Error(err))
			}
		}
	}
}

func (s *Store) reloadSaved() {
	saved, err := s.LoadSaved()
	if err != nil {
		s.logger.Warn("saved search config changed but is invalid, keeping active config", zap.Error(err))
		return
	}
	if saved == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.Active() == *saved {
		return
	}
	s.active.Store(saved)
	s.logger.Info("search config reloaded", zap.String("path", s.savedPath))
}
