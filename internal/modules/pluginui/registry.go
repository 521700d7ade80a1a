package pluginui

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

// RegisteredElement is a button placed into an injection point together
// with its owning plugin id.
type RegisteredElement struct {
	PluginID string `json:"plugin_id"`
	Button   Button `json:"button"`
}

// Registry is the process-wide store of loaded plugin UI: manifests by
// plugin id, buttons by injection point, dialogs by dialog id. The three
// maps are kept consistent by Register/Unload; nothing else writes to them.
// A single logical owner (the UI event flow) is expected to serialize
// mutation; the RWMutex guards the host API's read path, it is not a
// concurrency contract.
type Registry struct {
	mu              sync.RWMutex
	manifests       map[string]*PluginManifest
	injectionPoints map[string][]RegisteredElement
	dialogs         map[string]registeredDialog
	logger          hclog.Logger
}

type registeredDialog struct {
	pluginID string
	dialog   Dialog
}

// NewRegistry creates an empty plugin UI registry
func NewRegistry(logger hclog.Logger) *Registry {
	return &Registry{
		manifests:       make(map[string]*PluginManifest),
		injectionPoints: make(map[string][]RegisteredElement),
		dialogs:         make(map[string]registeredDialog),
		logger:          logger.Named("plugin-registry"),
	}
}

// Register stores a manifest and places its elements. Buttons are gated on
// the plugin's injection-point permissions: a denied button is skipped and
// logged while its siblings still register. Dialogs are indexed
// unconditionally; only the action that opens a dialog is (indirectly)
// gated. A manifest with the same plugin id replaces the prior one.
func (r *Registry) Register(manifest *PluginManifest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.manifests[manifest.ID]; exists {
		r.logger.Debug("replacing previously registered manifest", "plugin", manifest.ID)
		r.unloadLocked(manifest.ID)
	}

	for _, button := range manifest.Buttons {
		if !manifest.Permissions.HasInjectionPointAccess(button.InjectionPoint) {
			r.logger.Warn("button denied: plugin lacks injection point permission",
				"plugin", manifest.ID,
				"button", button.ID,
				"injection_point", button.InjectionPoint)
			continue
		}
		r.injectionPoints[button.InjectionPoint] = append(
			r.injectionPoints[button.InjectionPoint],
			RegisteredElement{PluginID: manifest.ID, Button: button},
		)
	}

	for _, dialog := range manifest.Dialogs {
		r.dialogs[dialog.ID] = registeredDialog{pluginID: manifest.ID, dialog: dialog}
	}

	r.manifests[manifest.ID] = manifest
}

// Query returns the ordered elements registered at an injection point. Each
// element is re-validated against its owning manifest's permissions; an
// element whose owner is gone or no longer grants the point is dropped and
// logged, never returned.
func (r *Registry) Query(point string) []RegisteredElement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryLocked(point, nil)
}

// QueryFiltered is Query restricted to plugins the backend reports as
// installed. This hides affordances for plugins whose UI manifest happens
// to be bundled client-side but whose backend half is absent.
func (r *Registry) QueryFiltered(point string, installed map[string]bool) []RegisteredElement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryLocked(point, installed)
}

func (r *Registry) queryLocked(point string, installed map[string]bool) []RegisteredElement {
	elements := r.injectionPoints[point]
	result := make([]RegisteredElement, 0, len(elements))
	for _, element := range elements {
		manifest, ok := r.manifests[element.PluginID]
		if !ok {
			r.logger.Error("registered element has no owning manifest, dropping",
				"plugin", element.PluginID, "button", element.Button.ID)
			continue
		}
		if !manifest.Permissions.HasInjectionPointAccess(point) {
			r.logger.Error("registered element no longer permitted at injection point, dropping",
				"plugin", element.PluginID, "button", element.Button.ID, "injection_point", point)
			continue
		}
		if installed != nil && !installed[element.PluginID] {
			continue
		}
		result = append(result, element)
	}
	return result
}

// GetDialog returns the dialog with the given id, or nil when unknown.
func (r *Registry) GetDialog(id string) *Dialog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.dialogs[id]
	if !ok {
		return nil
	}
	dialog := entry.dialog
	return &dialog
}

// GetManifest returns the loaded manifest for a plugin id, or nil.
func (r *Registry) GetManifest(pluginID string) *PluginManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifests[pluginID]
}

// ListManifests returns all loaded manifests.
func (r *Registry) ListManifests() []*PluginManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*PluginManifest, 0, len(r.manifests))
	for _, manifest := range r.manifests {
		result = append(result, manifest)
	}
	return result
}

// Unload removes a plugin's manifest, its buttons from every injection
// point list, and its dialogs, by scanning the manifest being removed.
// Unknown plugin ids are a no-op.
func (r *Registry) Unload(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unloadLocked(pluginID)
}

func (r *Registry) unloadLocked(pluginID string) {
	manifest, ok := r.manifests[pluginID]
	if !ok {
		return
	}

	for _, button := range manifest.Buttons {
		point := button.InjectionPoint
		elements := r.injectionPoints[point]
		kept := elements[:0]
		for _, element := range elements {
			if element.PluginID == pluginID && element.Button.ID == button.ID {
				continue
			}
			kept = append(kept, element)
		}
		if len(kept) == 0 {
			delete(r.injectionPoints, point)
		} else {
			r.injectionPoints[point] = kept
		}
	}

	for _, dialog := range manifest.Dialogs {
		if entry, ok := r.dialogs[dialog.ID]; ok && entry.pluginID == pluginID {
			delete(r.dialogs, dialog.ID)
		}
	}

	delete(r.manifests, pluginID)
	r.logger.Info("unloaded plugin UI", "plugin", pluginID)
}
