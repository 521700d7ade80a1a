package pluginui

import (
	"regexp"
	"strings"
)

// LocalizedText maps a locale tag to display text
type LocalizedText map[string]string

// Resolve returns the text for the requested locale. Lookup order: exact
// locale, base language code ("en-US" -> "en"), English, then any entry.
func (t LocalizedText) Resolve(locale string) string {
	if len(t) == 0 {
		return ""
	}
	if text, ok := t[locale]; ok {
		return text
	}
	if idx := strings.IndexAny(locale, "-_"); idx > 0 {
		if text, ok := t[locale[:idx]]; ok {
			return text
		}
	}
	if text, ok := t["en"]; ok {
		return text
	}
	for _, text := range t {
		return text
	}
	return ""
}

// ActionType discriminates the action union
type ActionType string

const (
	ActionShowDialog ActionType = "show_dialog"
	ActionCallAPI    ActionType = "call_api"
	ActionClose      ActionType = "close"
)

// OnSuccessDirective names the follow-up effect after a successful API call
type OnSuccessDirective string

const (
	OnSuccessNone                  OnSuccessDirective = ""
	OnSuccessRefreshPage           OnSuccessDirective = "refresh_page"
	OnSuccessClose                 OnSuccessDirective = "close"
	OnSuccessShowResults           OnSuccessDirective = "show_results"
	OnSuccessCloseDialogAndRefresh OnSuccessDirective = "close_dialog_and_refresh"
)

// FieldType enumerates the dialog field kinds the renderer understands
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
	FieldDropdown FieldType = "dropdown"
	FieldDate     FieldType = "date"
)

// Known reports whether the field type is one the renderer understands.
// Unknown types still load; the renderer shows an "unsupported" placeholder
// for them instead of the loader rejecting the manifest.
func (ft FieldType) Known() bool {
	switch ft {
	case FieldText, FieldNumber, FieldCheckbox, FieldRadio, FieldDropdown, FieldDate:
		return true
	}
	return false
}

// APIParam binds one dialog form field to a backend API parameter name
type APIParam struct {
	Field string `json:"field" yaml:"field"`
	Param string `json:"param" yaml:"param"`
}

// Action describes what happens when a button or dialog action fires.
// The same shape serves both; only the default HTTP method differs.
type Action struct {
	Type            ActionType             `json:"type" yaml:"type"`
	DialogID        string                 `json:"dialog_id,omitempty" yaml:"dialog_id"`
	APIEndpoint     string                 `json:"api_endpoint,omitempty" yaml:"api_endpoint"`
	Method          string                 `json:"method,omitempty" yaml:"method"`
	Body            map[string]interface{} `json:"body,omitempty" yaml:"body"`
	Params          []APIParam             `json:"params,omitempty" yaml:"params"`
	ShowProgress    bool                   `json:"show_progress,omitempty" yaml:"show_progress"`
	ProgressMessage LocalizedText          `json:"progress_message,omitempty" yaml:"progress_message"`
	SuccessMessage  LocalizedText          `json:"success_message,omitempty" yaml:"success_message"`
	ErrorMessage    LocalizedText          `json:"error_message,omitempty" yaml:"error_message"`
	OnSuccess       OnSuccessDirective     `json:"on_success,omitempty" yaml:"on_success"`
}

// FieldOption is one selectable value for radio/dropdown fields
type FieldOption struct {
	Value string        `json:"value" yaml:"value"`
	Label LocalizedText `json:"label" yaml:"label"`
}

// Field is one input in a plugin dialog
type Field struct {
	ID       string        `json:"id" yaml:"id"`
	Type     FieldType     `json:"type" yaml:"type"`
	Label    LocalizedText `json:"label" yaml:"label"`
	Hint     LocalizedText `json:"hint,omitempty" yaml:"hint"`
	Required bool          `json:"required,omitempty" yaml:"required"`
	Default  interface{}   `json:"default,omitempty" yaml:"default"`
	Options  []FieldOption `json:"options,omitempty" yaml:"options"`
}

// Button is a plugin-contributed button registered into an injection point
type Button struct {
	ID             string        `json:"id" yaml:"id"`
	InjectionPoint string        `json:"injection_point" yaml:"injection_point"`
	Icon           string        `json:"icon" yaml:"icon"`
	Label          LocalizedText `json:"label,omitempty" yaml:"label"`
	Tooltip        LocalizedText `json:"tooltip,omitempty" yaml:"tooltip"`
	Action         Action        `json:"action" yaml:"action"`
}

// DialogAction is one button row inside a plugin dialog
type DialogAction struct {
	ID     string        `json:"id" yaml:"id"`
	Label  LocalizedText `json:"label,omitempty" yaml:"label"`
	Action Action        `json:"action" yaml:"action"`
}

// Dialog is a plugin-declared dialog with form fields and actions
type Dialog struct {
	ID      string         `json:"id" yaml:"id"`
	Title   LocalizedText  `json:"title" yaml:"title"`
	Fields  []Field        `json:"fields,omitempty" yaml:"fields"`
	Actions []DialogAction `json:"actions,omitempty" yaml:"actions"`
}

// Permissions is the capability set a plugin declares up front
type Permissions struct {
	InjectionPoints []string `json:"injection_points" yaml:"injection_points"`
	APIAccess       []string `json:"api_access" yaml:"api_access"`
	DataAccess      []string `json:"data_access" yaml:"data_access"`
}

// HasInjectionPointAccess reports whether the plugin may register elements
// into the named injection point.
func (p Permissions) HasInjectionPointAccess(point string) bool {
	for _, allowed := range p.InjectionPoints {
		if allowed == point {
			return true
		}
	}
	return false
}

// HasAPIAccess reports whether the plugin may call the given endpoint path.
// Patterns support a single '*' wildcard segment; a pattern is converted to
// an anchored regular expression where '*' matches the rest of the path.
func (p Permissions) HasAPIAccess(endpoint string) bool {
	for _, pattern := range p.APIAccess {
		if apiPatternMatches(pattern, endpoint) {
			return true
		}
	}
	return false
}

func apiPatternMatches(pattern, endpoint string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == endpoint
	}
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	matched, err := regexp.MatchString(expr, endpoint)
	if err != nil {
		return false
	}
	return matched
}

// HasDataAccess reports whether the plugin may read the named context key.
func (p Permissions) HasDataAccess(key string) bool {
	for _, allowed := range p.DataAccess {
		if allowed == key {
			return true
		}
	}
	return false
}

// PluginManifest is the typed form of one plugin's declarative UI document
type PluginManifest struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Version     string        `json:"version" yaml:"version"`
	Description string        `json:"description,omitempty" yaml:"description"`
	Buttons     []Button      `json:"buttons,omitempty" yaml:"buttons"`
	Dialogs     []Dialog      `json:"dialogs,omitempty" yaml:"dialogs"`
	Permissions Permissions   `json:"permissions" yaml:"permissions"`
}
