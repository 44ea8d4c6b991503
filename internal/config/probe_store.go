package config

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/secutel/netmanager/internal/probe"
)

// probeFile is the on-disk shape of the probe tuning file.
type probeFile struct {
	Ports          []int `yaml:"ports"`
	TimeoutSeconds int   `yaml:"timeout_seconds"`
	MaxConcurrency int   `yaml:"max_concurrency"`
}

// ProbeConfigStore holds the live probe settings. Every sync run reads
// through Get, so a file edit lands on the next run without a restart.
type ProbeConfigStore struct {
	mu   sync.RWMutex
	path string
	cfg  probe.Config
}

// NewProbeConfigStore loads path if given, else the defaults. A missing or
// broken file is logged and ignored; the engine never refuses to start over
// tuning.
func NewProbeConfigStore(path string) *ProbeConfigStore {
	s := &ProbeConfigStore{path: path, cfg: probe.DefaultConfig()}
	if path != "" {
		if err := s.reload(); err != nil {
			log.Printf("probe config %s: %v, using defaults", path, err)
		}
	}
	return s
}

func (s *ProbeConfigStore) Get() probe.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *ProbeConfigStore) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var f probeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}

	cfg := probe.DefaultConfig()
	if len(f.Ports) > 0 {
		cfg.Ports = f.Ports
	}
	if f.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(f.TimeoutSeconds) * time.Second
	}
	if f.MaxConcurrency > 0 {
		cfg.MaxConcurrency = f.MaxConcurrency
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	log.Printf("probe config reloaded: ports=%v timeout=%s concurrency=%d", cfg.Ports, cfg.Timeout, cfg.MaxConcurrency)
	return nil
}

// Watch reloads on file changes until ctx is done. No-op without a path.
func (s *ProbeConfigStore) Watch(ctx context.Context) {
	if s.path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("probe config watcher: %v", err)
		return
	}
	if err := watcher.Add(s.path); err != nil {
		log.Printf("probe config watcher: %v", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Editors often truncate then write; give them a beat.
					time.Sleep(100 * time.Millisecond)
					if err := s.reload(); err != nil {
						log.Printf("probe config reload: %v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("probe config watcher: %v", err)
			}
		}
	}()
}
