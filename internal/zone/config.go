package zone

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay lets a writer finish before the file is re-read.
const reloadDelay = 50 * time.Millisecond

// Config is the single owner of the current zone polygon. Editors call Set;
// detection code calls Polygon or subscribes to updates.
type Config struct {
	path string

	mu      sync.RWMutex
	polygon Polygon
	subs    []chan Polygon
}

// NewConfig loads the polygon from path (falling back to the default).
// An empty path keeps the zone in memory only.
func NewConfig(path string) *Config {
	p := DefaultPolygon()
	if path != "" {
		p = Load(path)
	}
	return &Config{path: path, polygon: p}
}

// Path returns the backing file, if any.
func (c *Config) Path() string {
	return c.path
}

// Polygon returns a copy of the current polygon.
func (c *Config) Polygon() Polygon {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.polygon.Clone()
}

// Set replaces the polygon in memory and notifies subscribers. It does not
// touch the file; call Save to persist.
func (c *Config) Set(p Polygon) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.update(p.Clone())
	return nil
}

// Save writes the current polygon to the backing file.
func (c *Config) Save() error {
	if c.path == "" {
		return nil
	}
	if err := Save(c.path, c.Polygon()); err != nil {
		return err
	}
	log.Printf("zone: saved to %s", c.path)
	return nil
}

// Subscribe returns a channel receiving the latest polygon after every
// change. Slow subscribers only see the most recent value.
func (c *Config) Subscribe() <-chan Polygon {
	ch := make(chan Polygon, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

// Watch reloads the polygon whenever the backing file changes, until ctx is
// done. Invalid edits are ignored with a warning. If file notifications are
// unavailable it polls the modification time instead.
func (c *Config) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("zone: fsnotify not available, falling back to polling: %v", err)
		c.poll(ctx)
		return nil
	}
	defer watcher.Close()

	// Watch the directory: Save replaces the file by rename.
	if err := watcher.Add(dir); err != nil {
		log.Printf("zone: cannot watch %s, falling back to polling: %v", dir, err)
		c.poll(ctx)
		return nil
	}

	target := filepath.Clean(c.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				c.poll(ctx)
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			time.Sleep(reloadDelay)
			c.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				c.poll(ctx)
				return nil
			}
			log.Printf("zone: watcher error: %v", err)
		}
	}
}

func (c *Config) poll(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(c.path); err == nil {
		lastMod = info.ModTime()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(c.path)
			if err != nil || !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			c.reload()
		}
	}
}

func (c *Config) reload() {
	p, err := Read(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("zone: ignoring invalid edit of %s: %v", c.path, err)
		}
		return
	}
	if p.Equal(c.Polygon()) {
		return
	}
	log.Printf("zone: reloaded %d points from %s", len(p), c.path)
	c.update(p)
}

func (c *Config) update(p Polygon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polygon = p
	for _, ch := range c.subs {
		// Drop the stale value so the send never blocks.
		select {
		case <-ch:
		default:
		}
		ch <- p.Clone()
	}
}
