package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/kkyr/fig"
	"github.com/teamvoice/relay/pkg/logger"
)

const (
	EnvPrefix = "VOICE"
	FileName  = "config.yaml"
)

var searchDirs = []string{".", "configs"}

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file or its directory,
// when empty the file is searched in the current and the configs directories.
// Reads and puts environment variables with the prefix VOICE_.
// Params from the config should be in uppercase separated with _.
//
// It returns the path of the loaded file, which is empty when
// only the defaults and the environment were used.
func LoadConfig(config any, path string) (string, error) {
	file, err := findFile(path)
	if err != nil {
		return "", err
	}
	if file == "" {
		return "", fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	if err := fig.Load(config,
		fig.File(filepath.Base(file)),
		fig.Dirs(filepath.Dir(file)),
		fig.UseEnv(EnvPrefix),
	); err != nil {
		return file, fmt.Errorf("config %v: %w", file, err)
	}
	return file, nil
}

func findFile(path string) (string, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		if info.IsDir() {
			path = filepath.Join(path, FileName)
			if _, err := os.Stat(path); err != nil {
				return "", fmt.Errorf("config: %w", err)
			}
		}
		return path, nil
	}
	for _, dir := range searchDirs {
		p := filepath.Join(dir, FileName)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// Watch reloads the file on every change and passes the new values to onChange
// until the context is done. The directory is watched since editors often
// replace the file instead of writing into it.
func Watch(ctx context.Context, path string, log *logger.Logger, onChange func(Config)) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				var conf Config
				if _, err := LoadConfig(&conf, path); err != nil {
					log.Warn().Err(err).Msg("config reload")
					continue
				}
				if err := conf.Validate(); err != nil {
					log.Warn().Err(err).Msg("config reload")
					continue
				}
				log.Info().Str("file", path).Msg("config reloaded")
				onChange(conf)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watch")
			}
		}
	}()
	return nil
}
