package plugin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

const manifestFile = "plugin.json"

// Manager discovers plugins under a directory.
type Manager struct {
	pluginDir string
	logger    *slog.Logger

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager for pluginDir. A nil logger uses slog.Default().
func NewManager(pluginDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pluginDir: pluginDir,
		logger:    logger,
		plugins:   make(map[string]*Plugin),
	}
}

// Discover rescans the plugin directory. Every subdirectory with a readable
// plugin.json is a plugin; broken manifests are logged and skipped. A missing
// directory yields no plugins.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(m.pluginDir, entry.Name())
		data, err := os.ReadFile(filepath.Join(dir, manifestFile))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			m.logger.Warn("skipping plugin", "dir", dir, "error", err)
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			m.logger.Warn("skipping plugin with invalid manifest", "dir", dir, "error", err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			m.logger.Warn("skipping plugin without name or executable", "dir", dir)
			continue
		}

		found[manifest.Name] = &Plugin{
			Manifest:   manifest,
			Path:       dir,
			Executable: filepath.Join(dir, manifest.Executable),
		}
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	m.logger.Info("plugins discovered", "dir", m.pluginDir, "count", len(found))
	return nil
}

// Get returns a plugin by name or ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// List returns all discovered plugins ordered by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
