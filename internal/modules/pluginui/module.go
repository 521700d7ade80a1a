// Package pluginui implements the plugin UI core: declarative manifests,
// the injection-point registry with its capability model, the action
// dispatcher, and session-based progress tracking for long-running backend
// jobs.
package pluginui

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/reelhaven/reelhaven/internal/backend"
	"github.com/reelhaven/reelhaven/internal/config"
	"github.com/reelhaven/reelhaven/internal/events"
)

// Module coordinates the plugin UI subsystem: it owns the registry, the
// loader, the dispatcher, and the hot reload manager, and is the single
// entry point the rest of the application talks to.
type Module struct {
	cfg      config.PluginConfig
	registry *Registry
	loader   *Loader
	host     Host

	dispatcher *Dispatcher
	hotReload  *HotReloadManager
	client     *backend.Client
	bus        *events.Bus
	logger     hclog.Logger
}

// NewModule creates the plugin UI module
func NewModule(cfg config.PluginConfig, client *backend.Client, bus *events.Bus, logger hclog.Logger) *Module {
	moduleLogger := logger.Named("pluginui")
	registry := NewRegistry(moduleLogger)
	loader := NewLoader(registry, moduleLogger)
	host := NewEventHost(bus, moduleLogger)

	return &Module{
		cfg:        cfg,
		registry:   registry,
		loader:     loader,
		host:       host,
		dispatcher: NewDispatcher(registry, client, host, cfg.Locale, moduleLogger),
		client:     client,
		bus:        bus,
		logger:     moduleLogger,
	}
}

// Registry exposes the registry to host screens
func (m *Module) Registry() *Registry {
	return m.registry
}

// Dispatcher exposes the action dispatcher
func (m *Module) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Events exposes the UI-effect bus the module publishes on
func (m *Module) Events() *events.Bus {
	return m.bus
}

// Initialize loads every plugin manifest under the plugin directory and,
// when enabled, starts watching for manifest changes. Per-plugin load
// failures are logged and skipped; initialization itself only fails on
// infrastructure problems (unwatchable directory).
func (m *Module) Initialize(ctx context.Context) error {
	m.logger.Info("initializing plugin UI module", "plugin_dir", m.cfg.PluginDir)

	failures := m.loader.LoadDir(m.cfg.PluginDir, m.cfg.ManifestName)
	for _, err := range failures {
		m.logger.Warn("plugin UI skipped", "error", err)
	}
	m.logger.Info("plugin UI manifests loaded",
		"loaded", len(m.registry.ListManifests()),
		"skipped", len(failures))

	if m.cfg.EnableHotReload {
		hotReload, err := NewHotReloadManager(m.registry, m.loader, m.cfg.PluginDir, m.cfg.ManifestName, m.cfg.DebounceDelay, m.logger)
		if err != nil {
			return fmt.Errorf("failed to create hot reload manager: %w", err)
		}
		hotReload.OnReloadSuccess(func(pluginID string) {
			m.bus.Publish(events.NewEvent(events.EventPluginReloaded, "pluginui", map[string]interface{}{
				"plugin_id": pluginID,
			}))
		})
		if err := hotReload.Start(); err != nil {
			return fmt.Errorf("failed to start hot reload manager: %w", err)
		}
		m.hotReload = hotReload
	}

	return nil
}

// Reload unloads then re-loads one plugin's manifest on demand.
func (m *Module) Reload(pluginID string) error {
	path := filepath.Join(m.cfg.PluginDir, pluginID, m.cfg.ManifestName)
	m.registry.Unload(pluginID)
	return m.loader.Load(pluginID, path)
}

// QueryInstalled queries an injection point restricted to plugins the
// backend reports as installed. When the backend cannot be reached the
// unfiltered view is returned; stale affordances beat an empty toolbar on
// a transient network blip.
func (m *Module) QueryInstalled(ctx context.Context, point string) []RegisteredElement {
	installed, err := m.client.InstalledPlugins(ctx)
	if err != nil {
		m.logger.Warn("installed-plugin lookup failed, returning unfiltered elements", "error", err)
		return m.registry.Query(point)
	}
	return m.registry.QueryFiltered(point, installed)
}

// DispatchFor executes an action on behalf of a plugin, enforcing the
// plugin's api_access capability for call_api actions. The endpoint
// template is matched before placeholder substitution; access patterns are
// written against the template's path shape. Denials are a plugin-author
// mistake: logged, never shown to the user.
func (m *Module) DispatchFor(ctx context.Context, pluginID string, action Action, contextData, formData map[string]interface{}) (*DispatchResult, error) {
	manifest := m.registry.GetManifest(pluginID)
	if manifest == nil {
		m.logger.Error("dispatch for unknown plugin", "plugin", pluginID)
		return nil, fmt.Errorf("plugin %s is not loaded", pluginID)
	}

	if action.Type == ActionCallAPI && !manifest.Permissions.HasAPIAccess(action.APIEndpoint) {
		m.logger.Error("api call denied: plugin lacks api_access permission",
			"plugin", pluginID, "endpoint", action.APIEndpoint)
		return nil, fmt.Errorf("plugin %s may not call %s", pluginID, action.APIEndpoint)
	}

	// Only context keys the plugin declared data_access for reach the
	// dispatcher.
	allowed := contextData
	if len(contextData) > 0 {
		allowed = make(map[string]interface{}, len(contextData))
		for key, value := range contextData {
			if manifest.Permissions.HasDataAccess(key) {
				allowed[key] = value
			} else {
				m.logger.Debug("context key withheld: no data_access permission",
					"plugin", pluginID, "key", key)
			}
		}
	}

	return m.dispatcher.Dispatch(ctx, action, allowed, formData)
}

// Shutdown stops background work
func (m *Module) Shutdown() {
	if m.hotReload != nil {
		m.hotReload.Stop()
	}
	m.logger.Info("plugin UI module stopped")
}
