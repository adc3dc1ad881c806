package delayestimator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// WatchConfig reloads the config file at path whenever it is written or replaced and hands the new
// config to onChange. A file that fails to load or validate is logged and the previous config stays
// in use. Runs until ctx is cancelled.
func WatchConfig(ctx context.Context, path string, onChange func(*Config)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("delay estimator config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// The directory is watched so a file replaced by rename keeps being followed
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to watch delay estimator config")
		return err
	}

	log.Info().Str("path", path).Msg("Watching delay estimator config")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != path {
				continue
			}

			// Editors saving atomically show up as a create
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			config, err := LoadConfig(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to reload delay estimator config")
				continue
			}

			log.Info().Str("path", path).Msg("Reloaded delay estimator config")
			onChange(config)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.Error().Err(err).Msg("Delay estimator config watcher error")
		}
	}
}
