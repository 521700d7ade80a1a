package pluginui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// Loader reads plugin UI manifest documents and registers the resulting
// manifests with the registry. Every failure is reported as a typed
// *LoadError and leaves the registry untouched for that plugin; nothing the
// loader does can abort application startup.
type Loader struct {
	registry *Registry
	logger   hclog.Logger
}

// NewLoader creates a manifest loader bound to a registry
func NewLoader(registry *Registry, logger hclog.Logger) *Loader {
	return &Loader{
		registry: registry,
		logger:   logger.Named("manifest-loader"),
	}
}

// Load reads the manifest document at path for the given plugin, validates
// it, and registers it. An empty document is a no-op: the plugin simply has
// no UI.
func (l *Loader) Load(pluginID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("no UI manifest for plugin", "plugin", pluginID, "path", path)
			return &LoadError{PluginID: pluginID, Kind: ErrManifestNotFound, Err: err}
		}
		return &LoadError{PluginID: pluginID, Kind: ErrManifestNotFound, Err: err}
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		l.logger.Debug("empty UI manifest, plugin has no UI", "plugin", pluginID)
		return nil
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		l.logger.Warn("malformed UI manifest", "plugin", pluginID, "error", err)
		return &LoadError{PluginID: pluginID, Kind: ErrMalformedManifest, Err: err}
	}

	manifest, err := buildManifest(tree)
	if err != nil {
		l.logger.Warn("invalid UI manifest", "plugin", pluginID, "error", err)
		return &LoadError{PluginID: pluginID, Kind: ErrMissingRequiredField, Err: err}
	}

	l.registry.Register(manifest)
	l.logger.Info("loaded plugin UI manifest",
		"plugin", manifest.ID,
		"version", manifest.Version,
		"buttons", len(manifest.Buttons),
		"dialogs", len(manifest.Dialogs))
	return nil
}

// LoadDir walks a plugin directory and loads each subdirectory's manifest
// document. Per-plugin failures are collected, not fatal; loading continues
// past broken plugins.
func (l *Loader) LoadDir(dir, manifestName string) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.logger.Warn("cannot read plugin directory", "dir", dir, "error", err)
		return []error{fmt.Errorf("failed to read plugin directory %s: %w", dir, err)}
	}

	var failures []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginID := entry.Name()
		path := filepath.Join(dir, pluginID, manifestName)
		if err := l.Load(pluginID, path); err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}

// buildManifest converts a generic YAML tree into the typed manifest,
// validating the three required top-level sections in one pass so that
// nothing structurally invalid enters the registry.
func buildManifest(tree map[string]interface{}) (*PluginManifest, error) {
	pluginSection, ok := asMap(tree["plugin"])
	if !ok {
		return nil, fmt.Errorf("missing required section: plugin")
	}
	uiValue, present := tree["ui_elements"]
	if !present {
		return nil, fmt.Errorf("missing required section: ui_elements")
	}
	uiSection, ok := asMap(uiValue)
	if !ok {
		// A bare `ui_elements:` key decodes as nil; a plugin may validly
		// declare no UI elements at all.
		if uiValue != nil {
			return nil, fmt.Errorf("section ui_elements is not a mapping")
		}
		uiSection = map[string]interface{}{}
	}
	permSection, ok := asMap(tree["permissions"])
	if !ok {
		return nil, fmt.Errorf("missing required section: permissions")
	}

	manifest := &PluginManifest{
		ID:          asString(pluginSection["id"]),
		Name:        asString(pluginSection["name"]),
		Version:     asString(pluginSection["version"]),
		Description: asString(pluginSection["description"]),
	}
	if manifest.ID == "" {
		return nil, fmt.Errorf("plugin.id is required")
	}
	if manifest.Name == "" {
		return nil, fmt.Errorf("plugin.name is required")
	}
	if manifest.Version == "" {
		return nil, fmt.Errorf("plugin.version is required")
	}

	for i, raw := range asList(uiSection["buttons"]) {
		entry, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("ui_elements.buttons[%d] is not a mapping", i)
		}
		button, err := buildButton(entry)
		if err != nil {
			return nil, fmt.Errorf("ui_elements.buttons[%d]: %w", i, err)
		}
		manifest.Buttons = append(manifest.Buttons, button)
	}

	for i, raw := range asList(uiSection["dialogs"]) {
		entry, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("ui_elements.dialogs[%d] is not a mapping", i)
		}
		dialog, err := buildDialog(entry)
		if err != nil {
			return nil, fmt.Errorf("ui_elements.dialogs[%d]: %w", i, err)
		}
		manifest.Dialogs = append(manifest.Dialogs, dialog)
	}

	manifest.Permissions = Permissions{
		InjectionPoints: asStringList(permSection["injection_points"]),
		APIAccess:       asStringList(permSection["api_access"]),
		DataAccess:      asStringList(permSection["data_access"]),
	}

	return manifest, nil
}

func buildButton(entry map[string]interface{}) (Button, error) {
	button := Button{
		ID:             asString(entry["id"]),
		InjectionPoint: asString(entry["injection_point"]),
		Icon:           asString(entry["icon"]),
		Label:          asLocalized(entry["label"]),
		Tooltip:        asLocalized(entry["tooltip"]),
	}
	if button.ID == "" {
		return Button{}, fmt.Errorf("button id is required")
	}
	if button.InjectionPoint == "" {
		return Button{}, fmt.Errorf("button %s: injection_point is required", button.ID)
	}

	actionEntry, ok := asMap(entry["action"])
	if !ok {
		return Button{}, fmt.Errorf("button %s: action is required", button.ID)
	}
	action, err := buildAction(actionEntry, "GET")
	if err != nil {
		return Button{}, fmt.Errorf("button %s: %w", button.ID, err)
	}
	button.Action = action
	return button, nil
}

func buildDialog(entry map[string]interface{}) (Dialog, error) {
	dialog := Dialog{
		ID:    asString(entry["id"]),
		Title: asLocalized(entry["title"]),
	}
	if dialog.ID == "" {
		return Dialog{}, fmt.Errorf("dialog id is required")
	}

	for i, raw := range asList(entry["fields"]) {
		fieldEntry, ok := asMap(raw)
		if !ok {
			return Dialog{}, fmt.Errorf("dialog %s: fields[%d] is not a mapping", dialog.ID, i)
		}
		field, err := buildField(fieldEntry)
		if err != nil {
			return Dialog{}, fmt.Errorf("dialog %s: fields[%d]: %w", dialog.ID, i, err)
		}
		dialog.Fields = append(dialog.Fields, field)
	}

	for i, raw := range asList(entry["actions"]) {
		actionEntry, ok := asMap(raw)
		if !ok {
			return Dialog{}, fmt.Errorf("dialog %s: actions[%d] is not a mapping", dialog.ID, i)
		}
		// Dialog actions default to POST: they usually submit form data.
		action, err := buildAction(actionEntry, "POST")
		if err != nil {
			return Dialog{}, fmt.Errorf("dialog %s: actions[%d]: %w", dialog.ID, i, err)
		}
		dialog.Actions = append(dialog.Actions, DialogAction{
			ID:     asString(actionEntry["id"]),
			Label:  asLocalized(actionEntry["label"]),
			Action: action,
		})
	}

	return dialog, nil
}

func buildField(entry map[string]interface{}) (Field, error) {
	field := Field{
		ID:       asString(entry["id"]),
		Type:     FieldType(asString(entry["type"])),
		Label:    asLocalized(entry["label"]),
		Hint:     asLocalized(entry["hint"]),
		Required: asBool(entry["required"]),
		Default:  entry["default"],
	}
	if field.ID == "" {
		return Field{}, fmt.Errorf("field id is required")
	}
	// Unknown field types pass through; the renderer handles them as
	// unsupported placeholders rather than failing the whole manifest.

	for i, raw := range asList(entry["options"]) {
		optEntry, ok := asMap(raw)
		if !ok {
			return Field{}, fmt.Errorf("field %s: options[%d] is not a mapping", field.ID, i)
		}
		field.Options = append(field.Options, FieldOption{
			Value: asString(optEntry["value"]),
			Label: asLocalized(optEntry["label"]),
		})
	}

	if (field.Type == FieldRadio || field.Type == FieldDropdown) && len(field.Options) == 0 {
		return Field{}, fmt.Errorf("field %s: %s fields require options", field.ID, field.Type)
	}

	return field, nil
}

func buildAction(entry map[string]interface{}, defaultMethod string) (Action, error) {
	actionType := ActionType(asString(entry["type"]))
	switch actionType {
	case ActionShowDialog, ActionCallAPI, ActionClose:
	default:
		return Action{}, fmt.Errorf("unknown action type %q", actionType)
	}

	action := Action{
		Type:            actionType,
		DialogID:        asString(entry["dialog_id"]),
		APIEndpoint:     asString(entry["api_endpoint"]),
		Method:          strings.ToUpper(asString(entry["method"])),
		ShowProgress:    asBool(entry["show_progress"]),
		ProgressMessage: asLocalized(entry["progress_message"]),
		SuccessMessage:  asLocalized(entry["success_message"]),
		ErrorMessage:    asLocalized(entry["error_message"]),
		OnSuccess:       OnSuccessDirective(asString(entry["on_success"])),
	}
	if action.Method == "" {
		action.Method = defaultMethod
	}

	if body, ok := asMap(entry["body"]); ok {
		action.Body = body
	}

	for i, raw := range asList(entry["params"]) {
		paramEntry, ok := asMap(raw)
		if !ok {
			return Action{}, fmt.Errorf("params[%d] is not a mapping", i)
		}
		action.Params = append(action.Params, APIParam{
			Field: asString(paramEntry["field"]),
			Param: asString(paramEntry["param"]),
		})
	}

	switch action.OnSuccess {
	case OnSuccessNone, OnSuccessRefreshPage, OnSuccessClose, OnSuccessShowResults, OnSuccessCloseDialogAndRefresh:
	default:
		return Action{}, fmt.Errorf("unknown on_success directive %q", action.OnSuccess)
	}

	return action, nil
}

// Generic-tree accessors. YAML documents arrive as map[string]interface{}
// trees; these helpers do the ad hoc shape checks in one place.

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asList(v interface{}) []interface{} {
	list, _ := v.([]interface{})
	return list
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asStringList(v interface{}) []string {
	var out []string
	for _, item := range asList(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asLocalized(v interface{}) LocalizedText {
	m, ok := asMap(v)
	if !ok {
		// A bare string is treated as the English text.
		if s := asString(v); s != "" {
			return LocalizedText{"en": s}
		}
		return nil
	}
	out := make(LocalizedText, len(m))
	for locale, text := range m {
		if s, ok := text.(string); ok {
			out[locale] = s
		}
	}
	return out
}
