package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval редакторы пишут файл несколькими событиями подряд
const debounceInterval = 200 * time.Millisecond

// Watch следит за файлом конфигурации и вызывает onChange с заново загруженной
// конфигурацией. Ошибки чтения и валидации передаются в onError, старая
// конфигурация при этом остается в силе. Блокируется до отмены ctx.
func Watch(ctx context.Context, configFile string, onChange func(*Config), onError func(error)) error {
	if configFile == "" {
		return fmt.Errorf("config file is required for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(configFile)
	if err != nil {
		return err
	}

	// Следим за каталогом: при атомарной замене файла наблюдение за самим файлом теряется
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounceInterval)

		case <-pending:
			pending = nil
			cfg, err := LoadConfig(absPath)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
