package unit

import (
	"sync"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

const DefaultWatchDebounce = 250 * time.Millisecond

// Watch calls onChange after changes in directory settle for debounce.
// The watcher runs until sctx stops.
func Watch(sctx *stopper.Context, directory string, debounce time.Duration, logger logging.Logger, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewIOError("failed to create units watcher", err)
	}
	if err := watcher.Add(directory); err != nil {
		_ = watcher.Close()
		return errors.NewIOError("failed to watch units directory", err).WithContext("directory", directory)
	}

	var (
		mutex sync.Mutex
		timer *time.Timer
	)
	trigger := func() {
		mutex.Lock()
		defer mutex.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if sctx.IsStopping() {
				return
			}
			onChange()
		})
	}

	sctx.Go(func(sctx *stopper.Context) error {
		defer func() {
			mutex.Lock()
			if timer != nil {
				timer.Stop()
			}
			mutex.Unlock()
			_ = watcher.Close()
		}()

		logger.Infof("Watching units directory: %s", directory)
		for {
			select {
			case <-sctx.Stopping():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op == fsnotify.Chmod {
					continue
				}
				logger.Debugf("Units directory changed, event: %s", event)
				trigger()
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Warnf("Units watcher error: %v", err)
			}
		}
	})
	return nil
}
