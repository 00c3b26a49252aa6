package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/authward/authward/pkg/observability"
)

// KeyProvider hands out the current HS256 signing key. With a key file it
// watches for rewrites and swaps the key in place, so tokens signed after a
// rotation use the new key without a restart.
type KeyProvider struct {
	mu      sync.RWMutex
	current []byte

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// StaticKeyProvider wraps a fixed key.
func StaticKeyProvider(key []byte) *KeyProvider {
	return &KeyProvider{current: key}
}

// WatchKeyFile reads the key file and watches its directory for changes.
// Watching the directory rather than the file survives the rename dance
// editors and secret mounts do on update.
func WatchKeyFile(path string, logger *observability.Logger) (*KeyProvider, error) {
	key, err := readKey(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create key watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch key directory: %w", err)
	}

	p := &KeyProvider{current: key, watcher: watcher, done: make(chan struct{})}
	go p.watch(path, logger)
	return p, nil
}

// Secret returns the provider's accessor, shaped for auth.NewTokenService.
func (p *KeyProvider) Secret() func() []byte {
	return func() []byte {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.current
	}
}

// Close stops the watcher. Safe on a static provider.
func (p *KeyProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	return p.watcher.Close()
}

func (p *KeyProvider) watch(path string, logger *observability.Logger) {
	target := filepath.Clean(path)
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			key, err := readKey(path)
			if err != nil {
				logger.WithError(err).Error("signing key reload failed, keeping previous key")
				continue
			}
			p.mu.Lock()
			changed := !bytes.Equal(p.current, key)
			p.current = key
			p.mu.Unlock()
			if changed {
				logger.Info("signing key rotated")
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Warn("key watcher error")
		}
	}
}

func readKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key file: %w", err)
	}
	key := bytes.TrimSpace(data)
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key file %s is empty", path)
	}
	return key, nil
}
