// Package config resolves the daemon/CLI's static environment (XDG
// directories, PATH, locale) plus a dynamic, fsnotify-watched rc file of
// extra scan roots, grounded directly on the teacher's internal/config
// (envconfig-parsed env struct + fsnotify watcher over a single rc file
// under sync.RWMutex), generalized from the "ADE_*" socket/terminal
// knobs to the XDG variables named in spec.md §4.9/§6.
package config

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"

	"github.com/dskidx/dskidx/internal/desktopentry"
)

const extraRootsRC = "extra-roots.rc"

var (
	global  *Config
	once    sync.Once
	initErr error
)

type env struct {
	Path       string `envconfig:"PATH"`
	DataHome   string `envconfig:"XDG_DATA_HOME"`
	DataDirs   string `envconfig:"XDG_DATA_DIRS"`
	CacheHome  string `envconfig:"XDG_CACHE_HOME"`
	ConfigHome string `envconfig:"XDG_CONFIG_HOME"`
	RuntimeDir string `envconfig:"XDG_RUNTIME_DIR"`
	LCMessages string `envconfig:"LC_MESSAGES"`
	LCAll      string `envconfig:"LC_ALL"`
	Lang       string `envconfig:"LANG"`
	Timing     bool   `envconfig:"DESKTOP_INDEXER_TIMING"`
}

type rc struct {
	sync.RWMutex
	extraRoots []string
}

// Config is the process-wide, lazily-initialized configuration.
type Config struct {
	static  env
	dynamic rc
	watcher *fsnotify.Watcher
	locale  []string
}

// Init parses the environment and loads the extra-roots rc file exactly
// once per process.
func Init() error {
	once.Do(func() {
		global = &Config{}
		if initErr = envconfig.Process("", &global.static); initErr != nil {
			return
		}
		global.locale = desktopentry.EffectiveLocaleChain(global.static.LCMessages, global.static.LCAll, global.static.Lang)
		if initErr = global.loadRC(); initErr != nil {
			return
		}
		initErr = global.setupWatcher()
	})
	return initErr
}

// Get returns the process-wide Config, initializing it on first use.
func Get() *Config {
	if global == nil {
		_ = Init()
	}
	return global
}

// Run starts the background rc-file watch loop; safe to call once per
// process after Init/Get.
func Run() {
	c := Get()
	if c.watcher != nil {
		go c.watchLoop()
	}
}

// DataHome returns $XDG_DATA_HOME, defaulting to ~/.local/share.
func (c *Config) DataHome() string {
	if c.static.DataHome != "" {
		return c.static.DataHome
	}
	return joinHome(".local", "share")
}

// DataDirs returns $XDG_DATA_DIRS split on ':', defaulting to the
// freedesktop standard pair.
func (c *Config) DataDirs() []string {
	if c.static.DataDirs == "" {
		return []string{"/usr/local/share", "/usr/share"}
	}
	return splitNonEmpty(c.static.DataDirs, ":")
}

// CacheHome returns $XDG_CACHE_HOME, defaulting to ~/.cache.
func (c *Config) CacheHome() string {
	if c.static.CacheHome != "" {
		return c.static.CacheHome
	}
	return joinHome(".cache")
}

// ConfigHome returns $XDG_CONFIG_HOME, defaulting to ~/.config.
func (c *Config) ConfigHome() string {
	if c.static.ConfigHome != "" {
		return c.static.ConfigHome
	}
	return joinHome(".config")
}

// RuntimeDir returns $XDG_RUNTIME_DIR, or "" if unset (callers fall
// back to a /tmp socket path per spec.md §4.8).
func (c *Config) RuntimeDir() string {
	return c.static.RuntimeDir
}

// DefaultRoots returns the XDG application roots -- $XDG_DATA_HOME/applications
// followed by <dir>/applications for each $XDG_DATA_DIRS entry, per the
// Glossary's "XDG roots" definition -- plus any extra roots configured
// via the rc file.
func (c *Config) DefaultRoots() []string {
	roots := []string{filepath.Join(c.DataHome(), "applications")}
	for _, dir := range c.DataDirs() {
		roots = append(roots, filepath.Join(dir, "applications"))
	}
	roots = append(roots, c.ExtraRoots()...)
	return roots
}

// ExtraRoots returns the scan roots configured in the rc file, in file
// order.
func (c *Config) ExtraRoots() []string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()
	out := make([]string, len(c.dynamic.extraRoots))
	copy(out, c.dynamic.extraRoots)
	return out
}

// Path returns PATH split into directories.
func (c *Config) Path() []string {
	return splitNonEmpty(c.static.Path, ":")
}

// Locale returns the precomputed freedesktop locale specificity chain
// derived once from LC_MESSAGES/LC_ALL/LANG.
func (c *Config) Locale() []string {
	return c.locale
}

// Timing reports whether DESKTOP_INDEXER_TIMING was set truthy.
func (c *Config) Timing() bool {
	return c.static.Timing
}

func (c *Config) rcPath() string {
	return filepath.Join(c.ConfigHome(), "desktop-indexer", extraRootsRC)
}

func (c *Config) loadRC() error {
	path := c.rcPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			return f.Close()
		}
		return err
	}
	defer f.Close()

	var roots []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		roots = append(roots, expandHome(line))
	}
	if err := sc.Err(); err != nil {
		return err
	}

	c.dynamic.Lock()
	c.dynamic.extraRoots = roots
	c.dynamic.Unlock()
	return nil
}

func (c *Config) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.watcher = watcher
	return watcher.Add(filepath.Dir(c.rcPath()))
}

func (c *Config) watchLoop() {
	rcPath := c.rcPath()
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Name == rcPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				if err := c.loadRC(); err != nil {
					fmt.Fprintf(os.Stderr, "reloading extra-roots.rc: %v\n", err)
				}
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "config watcher error: %v\n", err)
		}
	}
}

func joinHome(parts ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		if u, uerr := user.Current(); uerr == nil {
			home = u.HomeDir
		}
	}
	return filepath.Join(append([]string{home}, parts...)...)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
