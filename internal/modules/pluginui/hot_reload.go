package pluginui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// HotReloadManager watches the plugin directory and reloads a plugin's UI
// manifest when its document changes on disk. Reloads are debounced per
// plugin so an editor's save burst triggers one reload, not five.
type HotReloadManager struct {
	registry     *Registry
	loader       *Loader
	logger       hclog.Logger
	pluginDir    string
	manifestName string

	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	debounceDelay time.Duration

	pendingReloads map[string]*time.Timer
	reloadMutex    sync.Mutex

	// Reload callbacks
	onReloadSuccess func(pluginID string)
	onReloadFailed  func(pluginID string, err error)
}

// NewHotReloadManager creates a hot reload manager watching pluginDir
func NewHotReloadManager(registry *Registry, loader *Loader, pluginDir, manifestName string, debounceDelay time.Duration, logger hclog.Logger) (*HotReloadManager, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if debounceDelay <= 0 {
		debounceDelay = 500 * time.Millisecond
	}

	return &HotReloadManager{
		registry:       registry,
		loader:         loader,
		logger:         logger.Named("hot-reload"),
		pluginDir:      pluginDir,
		manifestName:   manifestName,
		watcher:        watcher,
		ctx:            ctx,
		cancel:         cancel,
		debounceDelay:  debounceDelay,
		pendingReloads: make(map[string]*time.Timer),
	}, nil
}

// OnReloadSuccess registers a callback invoked after a successful reload.
func (hrm *HotReloadManager) OnReloadSuccess(fn func(pluginID string)) {
	hrm.onReloadSuccess = fn
}

// OnReloadFailed registers a callback invoked after a failed reload.
func (hrm *HotReloadManager) OnReloadFailed(fn func(pluginID string, err error)) {
	hrm.onReloadFailed = fn
}

// Start begins watching plugin directories for manifest changes
func (hrm *HotReloadManager) Start() error {
	hrm.logger.Info("starting manifest hot reload", "plugin_dir", hrm.pluginDir)

	if _, err := os.Stat(hrm.pluginDir); os.IsNotExist(err) {
		return fmt.Errorf("plugin directory does not exist: %s", hrm.pluginDir)
	}

	if err := hrm.addWatches(); err != nil {
		return fmt.Errorf("failed to add file watches: %w", err)
	}

	hrm.wg.Add(1)
	go hrm.watcherEventLoop()

	return nil
}

// Stop gracefully stops the watcher and cancels pending reloads
func (hrm *HotReloadManager) Stop() {
	hrm.cancel()

	if hrm.watcher != nil {
		hrm.watcher.Close()
	}

	hrm.reloadMutex.Lock()
	for pluginID, timer := range hrm.pendingReloads {
		timer.Stop()
		hrm.logger.Debug("cancelled pending reload", "plugin", pluginID)
	}
	hrm.pendingReloads = make(map[string]*time.Timer)
	hrm.reloadMutex.Unlock()

	hrm.wg.Wait()
	hrm.logger.Info("manifest hot reload stopped")
}

func (hrm *HotReloadManager) addWatches() error {
	// Watch the root so newly created plugin directories are picked up,
	// and each plugin directory for manifest writes.
	if err := hrm.watcher.Add(hrm.pluginDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(hrm.pluginDir)
	if err != nil {
		return fmt.Errorf("failed to read plugin directory: %w", err)
	}

	watched := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(hrm.pluginDir, entry.Name())
		if err := hrm.watcher.Add(path); err != nil {
			hrm.logger.Error("failed to watch plugin directory", "path", path, "error", err)
			continue
		}
		watched++
	}

	hrm.logger.Info("watching plugin directories", "count", watched)
	return nil
}

func (hrm *HotReloadManager) watcherEventLoop() {
	defer hrm.wg.Done()

	for {
		select {
		case event, ok := <-hrm.watcher.Events:
			if !ok {
				return
			}
			hrm.handleFileSystemEvent(event)

		case err, ok := <-hrm.watcher.Errors:
			if !ok {
				return
			}
			hrm.logger.Error("file watcher error", "error", err)

		case <-hrm.ctx.Done():
			return
		}
	}
}

func (hrm *HotReloadManager) handleFileSystemEvent(event fsnotify.Event) {
	// A new plugin directory appearing under the root gets a watch of its
	// own; its manifest write will follow.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && filepath.Dir(event.Name) == filepath.Clean(hrm.pluginDir) {
			if err := hrm.watcher.Add(event.Name); err != nil {
				hrm.logger.Error("failed to watch new plugin directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	// A plugin directory disappearing takes its manifest with it; the
	// per-file Remove event may never arrive since the watch dies with the
	// directory.
	if event.Op&fsnotify.Remove == fsnotify.Remove || event.Op&fsnotify.Rename == fsnotify.Rename {
		if filepath.Dir(event.Name) == filepath.Clean(hrm.pluginDir) {
			pluginID := filepath.Base(event.Name)
			if hrm.registry.GetManifest(pluginID) != nil {
				hrm.logger.Info("plugin directory removed, unloading plugin UI", "plugin", pluginID)
				hrm.registry.Unload(pluginID)
			}
			return
		}
	}

	if filepath.Base(event.Name) != hrm.manifestName {
		return
	}

	pluginID := filepath.Base(filepath.Dir(event.Name))
	if pluginID == "" || pluginID == "." {
		return
	}

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write,
		event.Op&fsnotify.Create == fsnotify.Create:
		hrm.scheduleReload(pluginID, "manifest updated")

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		hrm.logger.Info("manifest removed, unloading plugin UI", "plugin", pluginID)
		hrm.registry.Unload(pluginID)
	}
}

func (hrm *HotReloadManager) scheduleReload(pluginID, reason string) {
	hrm.reloadMutex.Lock()
	defer hrm.reloadMutex.Unlock()

	if timer, exists := hrm.pendingReloads[pluginID]; exists {
		timer.Stop()
	}

	hrm.logger.Debug("scheduling manifest reload", "plugin", pluginID, "reason", reason, "delay", hrm.debounceDelay)

	hrm.pendingReloads[pluginID] = time.AfterFunc(hrm.debounceDelay, func() {
		hrm.reloadMutex.Lock()
		delete(hrm.pendingReloads, pluginID)
		hrm.reloadMutex.Unlock()

		hrm.performReload(pluginID)
	})
}

// performReload is the registry's reload contract: unload, then load. Not
// atomic; between the two steps the plugin briefly has no registered UI,
// which is acceptable for a rare operator-driven path.
func (hrm *HotReloadManager) performReload(pluginID string) {
	path := filepath.Join(hrm.pluginDir, pluginID, hrm.manifestName)

	hrm.registry.Unload(pluginID)
	if err := hrm.loader.Load(pluginID, path); err != nil {
		hrm.logger.Warn("manifest reload failed, plugin has no UI", "plugin", pluginID, "error", err)
		if hrm.onReloadFailed != nil {
			hrm.onReloadFailed(pluginID, err)
		}
		return
	}

	hrm.logger.Info("manifest reloaded", "plugin", pluginID)
	if hrm.onReloadSuccess != nil {
		hrm.onReloadSuccess(pluginID)
	}
}
