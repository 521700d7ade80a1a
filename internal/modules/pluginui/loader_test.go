package pluginui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `
plugin:
  id: scraper_ui
  name: Scraper UI
  version: 1.0.0
ui_elements:
  buttons:
    - id: scrape_btn
      injection_point: media_detail_appbar
      icon: cloud_download
      label:
        en: Scrape
        ja: スクレイプ
      action:
        type: call_api
        api_endpoint: /api/v1/scrape/media/{media_id}
        show_progress: true
        on_success: refresh_page
  dialogs:
    - id: scrape_options
      title:
        en: Scrape Options
      fields:
        - id: scrape_mode
          type: dropdown
          label:
            en: Mode
          options:
            - value: replace
              label:
                en: Replace
            - value: supplement
              label:
                en: Supplement
      actions:
        - id: start
          label:
            en: Start
          action:
            type: call_api
            api_endpoint: /api/v1/scrape/media/batch
permissions:
  injection_points:
    - media_detail_appbar
  api_access:
    - /api/v1/scrape/*
  data_access:
    - media_id
`

func writeManifest(t *testing.T, dir, pluginID, content string) string {
	t.Helper()
	pluginDir := filepath.Join(dir, pluginID)
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	path := filepath.Join(pluginDir, "ui.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(t *testing.T) (*Loader, *Registry) {
	t.Helper()
	logger := hclog.NewNullLogger()
	registry := NewRegistry(logger)
	return NewLoader(registry, logger), registry
}

func TestLoader_HappyPath(t *testing.T) {
	loader, registry := newTestLoader(t)
	path := writeManifest(t, t.TempDir(), "scraper_ui", validManifest)

	require.NoError(t, loader.Load("scraper_ui", path))

	elements := registry.Query("media_detail_appbar")
	require.Len(t, elements, 1)
	assert.Equal(t, "scrape_btn", elements[0].Button.ID)
	assert.Equal(t, "scraper_ui", elements[0].PluginID)
	assert.Equal(t, ActionCallAPI, elements[0].Button.Action.Type)
	// Button actions default to GET.
	assert.Equal(t, "GET", elements[0].Button.Action.Method)

	assert.Empty(t, registry.Query("other_point"))

	dialog := registry.GetDialog("scrape_options")
	require.NotNil(t, dialog)
	assert.Equal(t, "Scrape Options", dialog.Title.Resolve("en"))
	require.Len(t, dialog.Actions, 1)
	// Dialog actions default to POST.
	assert.Equal(t, "POST", dialog.Actions[0].Action.Method)
}

func TestLoader_MissingFile(t *testing.T) {
	loader, registry := newTestLoader(t)

	err := loader.Load("ghost", filepath.Join(t.TempDir(), "ghost", "ui.yaml"))
	assert.ErrorIs(t, err, ErrManifestNotFound)
	assert.Empty(t, registry.ListManifests())
}

func TestLoader_EmptyDocumentIsNoOp(t *testing.T) {
	loader, registry := newTestLoader(t)
	path := writeManifest(t, t.TempDir(), "quiet", "   \n")

	assert.NoError(t, loader.Load("quiet", path))
	assert.Empty(t, registry.ListManifests())
}

func TestLoader_MalformedDocument(t *testing.T) {
	loader, registry := newTestLoader(t)
	path := writeManifest(t, t.TempDir(), "broken", "plugin: [unclosed")

	err := loader.Load("broken", path)
	assert.ErrorIs(t, err, ErrMalformedManifest)
	assert.Empty(t, registry.ListManifests())
}

func TestLoader_MissingRequiredSections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing plugin section",
			content: "ui_elements: {}\npermissions: {}\n",
		},
		{
			name:    "missing ui_elements section",
			content: "plugin: {id: x, name: X, version: '1'}\npermissions: {}\n",
		},
		{
			name:    "missing permissions section",
			content: "plugin: {id: x, name: X, version: '1'}\nui_elements: {}\n",
		},
		{
			name:    "missing plugin version",
			content: "plugin: {id: x, name: X}\nui_elements: {}\npermissions: {}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, registry := newTestLoader(t)
			path := writeManifest(t, t.TempDir(), "x", tt.content)

			err := loader.Load("x", path)
			assert.ErrorIs(t, err, ErrMissingRequiredField)
			assert.Empty(t, registry.ListManifests())
		})
	}
}

func TestLoader_EmptyUIElementsIsValid(t *testing.T) {
	loader, registry := newTestLoader(t)
	content := `
plugin: {id: bare, name: Bare, version: '1.0'}
ui_elements: {}
permissions:
  injection_points: []
  api_access: []
  data_access: []
`
	path := writeManifest(t, t.TempDir(), "bare", content)

	require.NoError(t, loader.Load("bare", path))
	require.Len(t, registry.ListManifests(), 1)
	assert.Empty(t, registry.ListManifests()[0].Buttons)
}

func TestLoader_BareUIElementsKeyIsValid(t *testing.T) {
	loader, registry := newTestLoader(t)
	// A bare key decodes to nil, which is still "present but empty".
	content := `
plugin: {id: bare, name: Bare, version: '1.0'}
ui_elements:
permissions:
  injection_points: []
  api_access: []
  data_access: []
`
	path := writeManifest(t, t.TempDir(), "bare", content)

	require.NoError(t, loader.Load("bare", path))
	require.Len(t, registry.ListManifests(), 1)
	assert.Empty(t, registry.ListManifests()[0].Buttons)
}

func TestLoader_UIElementsScalarRejected(t *testing.T) {
	loader, registry := newTestLoader(t)
	content := `
plugin: {id: bad, name: Bad, version: '1.0'}
ui_elements: 42
permissions:
  injection_points: []
  api_access: []
  data_access: []
`
	path := writeManifest(t, t.TempDir(), "bad", content)

	assert.ErrorIs(t, loader.Load("bad", path), ErrMissingRequiredField)
	assert.Empty(t, registry.ListManifests())
}

func TestLoader_UnknownFieldTypeAccepted(t *testing.T) {
	loader, registry := newTestLoader(t)
	content := `
plugin: {id: future, name: Future, version: '1.0'}
ui_elements:
  dialogs:
    - id: exotic
      title: {en: Exotic}
      fields:
        - id: rating
          type: star_slider
          label: {en: Rating}
permissions:
  injection_points: []
  api_access: []
  data_access: []
`
	path := writeManifest(t, t.TempDir(), "future", content)

	require.NoError(t, loader.Load("future", path))
	dialog := registry.GetDialog("exotic")
	require.NotNil(t, dialog)
	require.Len(t, dialog.Fields, 1)
	assert.False(t, dialog.Fields[0].Type.Known())
}

func TestLoader_RadioWithoutOptionsRejected(t *testing.T) {
	loader, _ := newTestLoader(t)
	content := `
plugin: {id: bad, name: Bad, version: '1.0'}
ui_elements:
  dialogs:
    - id: d
      title: {en: D}
      fields:
        - id: pick
          type: radio
          label: {en: Pick}
permissions:
  injection_points: []
  api_access: []
  data_access: []
`
	path := writeManifest(t, t.TempDir(), "bad", content)

	assert.ErrorIs(t, loader.Load("bad", path), ErrMissingRequiredField)
}

func TestLoader_LoadDirContinuesPastBrokenPlugin(t *testing.T) {
	loader, registry := newTestLoader(t)
	dir := t.TempDir()

	writeManifest(t, dir, "alpha", validManifest)
	writeManifest(t, dir, "broken", "plugin: [unclosed")

	failures := loader.LoadDir(dir, "ui.yaml")
	assert.Len(t, failures, 1)
	require.Len(t, registry.ListManifests(), 1)
	assert.Equal(t, "scraper_ui", registry.ListManifests()[0].ID)
}
