package pluginui

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHotReloadEnv(t *testing.T) (*HotReloadManager, *Registry, string) {
	t.Helper()

	dir := t.TempDir()
	loader, registry := newTestLoader(t)

	manager, err := NewHotReloadManager(registry, loader, dir, "ui.yaml", 20*time.Millisecond, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(manager.Stop)

	return manager, registry, dir
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestHotReload_ManifestWriteReloadsPlugin(t *testing.T) {
	manager, registry, dir := newHotReloadEnv(t)
	path := writeManifest(t, dir, "scraper_ui", validManifest)

	var mu sync.Mutex
	var reloaded []string
	manager.OnReloadSuccess(func(pluginID string) {
		mu.Lock()
		reloaded = append(reloaded, pluginID)
		mu.Unlock()
	})

	require.NoError(t, manager.Start())

	updated := strings.Replace(validManifest, "icon: cloud_download", "icon: refresh", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	ok := waitFor(t, 2*time.Second, func() bool {
		elements := registry.Query("media_detail_appbar")
		return len(elements) == 1 && elements[0].Button.Icon == "refresh"
	})
	require.True(t, ok, "expected the updated manifest to be re-registered")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, reloaded, "scraper_ui")
}

func TestHotReload_NewPluginDirectoryIsPickedUp(t *testing.T) {
	manager, registry, dir := newHotReloadEnv(t)
	require.NoError(t, manager.Start())

	// The plugin directory appears after the watcher started; give the
	// watcher a moment to pick it up before the manifest lands.
	pluginDir := filepath.Join(dir, "late_ui")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	time.Sleep(200 * time.Millisecond)
	manifest := strings.Replace(validManifest, "id: scraper_ui", "id: late_ui", 1)
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "ui.yaml"), []byte(manifest), 0o644))

	ok := waitFor(t, 2*time.Second, func() bool {
		return registry.GetManifest("late_ui") != nil
	})
	assert.True(t, ok, "expected the late plugin's manifest to load")
}

func TestHotReload_ManifestRemovalUnloadsPlugin(t *testing.T) {
	manager, registry, dir := newHotReloadEnv(t)
	path := writeManifest(t, dir, "scraper_ui", validManifest)
	loader := NewLoader(registry, hclog.NewNullLogger())
	require.NoError(t, loader.Load("scraper_ui", path))
	require.NotNil(t, registry.GetManifest("scraper_ui"))

	require.NoError(t, manager.Start())
	require.NoError(t, os.Remove(path))

	ok := waitFor(t, 2*time.Second, func() bool {
		return registry.GetManifest("scraper_ui") == nil
	})
	assert.True(t, ok, "expected the plugin to be unloaded after manifest removal")
}

func TestHotReload_PluginDirectoryRemovalUnloadsPlugin(t *testing.T) {
	manager, registry, dir := newHotReloadEnv(t)
	path := writeManifest(t, dir, "scraper_ui", validManifest)
	loader := NewLoader(registry, hclog.NewNullLogger())
	require.NoError(t, loader.Load("scraper_ui", path))
	require.NotNil(t, registry.GetManifest("scraper_ui"))

	require.NoError(t, manager.Start())

	// The whole plugin directory goes away, not just its manifest.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "scraper_ui")))

	ok := waitFor(t, 2*time.Second, func() bool {
		return registry.GetManifest("scraper_ui") == nil
	})
	assert.True(t, ok, "expected the plugin to be unloaded after its directory was removed")
}

func TestHotReload_BrokenManifestReportsFailure(t *testing.T) {
	manager, registry, dir := newHotReloadEnv(t)
	path := writeManifest(t, dir, "scraper_ui", validManifest)
	loader := NewLoader(registry, hclog.NewNullLogger())
	require.NoError(t, loader.Load("scraper_ui", path))

	var mu sync.Mutex
	var failed bool
	manager.OnReloadFailed(func(pluginID string, err error) {
		mu.Lock()
		failed = true
		mu.Unlock()
	})

	require.NoError(t, manager.Start())
	require.NoError(t, os.WriteFile(path, []byte("plugin: [broken"), 0o644))

	ok := waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return failed
	})
	assert.True(t, ok, "expected the failed reload callback to fire")
	// The stale manifest was unloaded and nothing replaced it.
	assert.Nil(t, registry.GetManifest("scraper_ui"))
}

func TestHotReload_StartFailsWithoutPluginDir(t *testing.T) {
	loader, registry := newTestLoader(t)
	manager, err := NewHotReloadManager(registry, loader, filepath.Join(t.TempDir(), "missing"), "ui.yaml", time.Millisecond, hclog.NewNullLogger())
	require.NoError(t, err)
	defer manager.Stop()

	assert.Error(t, manager.Start())
}
