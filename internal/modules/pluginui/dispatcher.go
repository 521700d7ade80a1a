package pluginui

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// APIClient is the backend surface the dispatcher needs. *backend.Client
// satisfies it.
type APIClient interface {
	Do(ctx context.Context, method, path string, query url.Values, body map[string]interface{}) (map[string]interface{}, error)
	DoScrape(ctx context.Context, method, path string, query url.Values, body map[string]interface{}) (map[string]interface{}, error)
	Poll(ctx context.Context, path string) (map[string]interface{}, error)
}

// Host is the rendering layer's surface. The dispatcher drives dialogs,
// progress indicators, and notifications through it and never touches the
// UI directly.
type Host interface {
	ShowDialog(dialog *Dialog)
	CloseDialog()
	ShowProgress(message string)
	DismissProgress()
	Notify(message string)
	ShowResults(results map[string]interface{})
	RefreshPage()
}

// ResultKind says how a dispatch concluded
type ResultKind string

const (
	ResultDialogShown ResultKind = "dialog_shown"
	ResultClosed      ResultKind = "closed"
	ResultAPICall     ResultKind = "api_call"
	ResultJob         ResultKind = "job"
)

// DispatchResult is the typed outcome of one dispatch
type DispatchResult struct {
	Kind     ResultKind             `json:"kind"`
	Response map[string]interface{} `json:"response,omitempty"`
	Outcome  *JobOutcome            `json:"outcome,omitempty"`
}

// Legacy context keys renamed while copying context data into the
// parameter map.
var legacyKeyRenames = map[string]string{
	"selected_media_ids": "media_ids",
	"selected_actor_ids": "actor_ids",
}

// Dispatcher executes manifest-declared actions: dialog display, dialog
// dismissal, and permissioned API calls with optional session-based
// progress tracking. Every failure is caught here, turned into a localized
// notification, and returned as an error; nothing escapes to crash the app.
type Dispatcher struct {
	registry *Registry
	client   APIClient
	host     Host
	locale   string
	logger   hclog.Logger
}

// NewDispatcher creates an action dispatcher
func NewDispatcher(registry *Registry, client APIClient, host Host, locale string, logger hclog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		client:   client,
		host:     host,
		locale:   locale,
		logger:   logger.Named("action-dispatcher"),
	}
}

// Dispatch executes one action with the ambient context data and the
// dialog form data. contextData is read-only here; the dispatcher copies it
// and never mutates the caller's map.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, contextData, formData map[string]interface{}) (*DispatchResult, error) {
	switch action.Type {
	case ActionShowDialog:
		dialog := d.registry.GetDialog(action.DialogID)
		if dialog == nil {
			// Plugin-author mistake, not user-actionable: log, no notification.
			d.logger.Error("dialog not found", "dialog", action.DialogID)
			return nil, fmt.Errorf("%w: %s", ErrDialogNotFound, action.DialogID)
		}
		d.host.ShowDialog(dialog)
		return &DispatchResult{Kind: ResultDialogShown}, nil

	case ActionClose:
		d.host.CloseDialog()
		return &DispatchResult{Kind: ResultClosed}, nil

	case ActionCallAPI:
		result, err := d.callAPI(ctx, action, contextData, formData)
		if err != nil {
			d.host.DismissProgress()
			d.host.Notify(userMessageFor(err, action.ErrorMessage, d.locale))
			return nil, err
		}
		return result, nil

	default:
		d.logger.Error("unknown action type", "type", action.Type)
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAction, action.Type)
	}
}

func (d *Dispatcher) callAPI(ctx context.Context, action Action, contextData, formData map[string]interface{}) (*DispatchResult, error) {
	if action.APIEndpoint == "" {
		return nil, fmt.Errorf("%w: empty api_endpoint", ErrInvalidAction)
	}

	params := buildParams(contextData, formData, action.Params)
	// Raw context data rides along as a substitution source so a template
	// may still name a context key by its legacy spelling.
	endpoint, usedKeys := substitutePlaceholders(action.APIEndpoint, params, formData, contextData)
	for legacy, renamed := range legacyKeyRenames {
		if usedKeys[legacy] {
			usedKeys[renamed] = true
		}
	}

	// Everything not consumed as a URL placeholder is eligible for the
	// query string or body.
	bodyParams := make(map[string]interface{}, len(params))
	for key, value := range params {
		if usedKeys[key] {
			continue
		}
		bodyParams[key] = value
	}
	// Form values without an explicit binding still reach the backend,
	// e.g. a scrape_mode chosen in a dialog.
	for key, value := range formData {
		if usedKeys[key] {
			continue
		}
		if _, present := bodyParams[key]; !present {
			bodyParams[key] = coerceFormValue(value)
		}
	}

	progressShown := false
	if action.ShowProgress {
		message := action.ProgressMessage.Resolve(d.locale)
		if message == "" {
			message = "Loading..."
		}
		d.host.ShowProgress(message)
		progressShown = true
	}

	response, err := d.issueCall(ctx, action, endpoint, bodyParams)
	if err != nil {
		return nil, err
	}

	if profile, sessionID, isJob := classifyJob(endpoint, response); isJob {
		if progressShown {
			d.host.DismissProgress()
		}
		return d.trackJob(ctx, action, profile, sessionID)
	}

	if progressShown {
		d.host.DismissProgress()
	}
	if message := action.SuccessMessage.Resolve(d.locale); message != "" {
		d.host.Notify(message)
	}
	d.applyOnSuccess(action.OnSuccess, response)

	return &DispatchResult{Kind: ResultAPICall, Response: response}, nil
}

func (d *Dispatcher) issueCall(ctx context.Context, action Action, endpoint string, bodyParams map[string]interface{}) (map[string]interface{}, error) {
	method := action.Method
	if method == "" {
		method = http.MethodGet
	}

	call := d.client.Do
	if isJobStartEndpoint(endpoint) {
		// Job starts can block while the backend spins the session up.
		call = d.client.DoScrape
	}

	d.logger.Debug("dispatching API call", "method", method, "endpoint", endpoint)

	if method == http.MethodGet {
		query := url.Values{}
		for key, value := range bodyParams {
			query.Set(key, valueToString(value))
		}
		return call(ctx, method, endpoint, query, nil)
	}

	// The manifest-declared body always has final say on key collisions;
	// a manifest can pin mode: "supplement" no matter what the parameter
	// building computed.
	body := make(map[string]interface{}, len(bodyParams)+len(action.Body))
	for key, value := range bodyParams {
		body[key] = value
	}
	for key, value := range action.Body {
		body[key] = value
	}
	return call(ctx, method, endpoint, nil, body)
}

func (d *Dispatcher) trackJob(ctx context.Context, action Action, profile jobProfile, sessionID string) (*DispatchResult, error) {
	d.logger.Info("job session started", "job", string(profile.kind), "session", sessionID)

	message := action.ProgressMessage.Resolve(d.locale)
	if message == "" {
		message = "Loading..."
	}
	d.host.ShowProgress(message)

	// Repeated ShowProgress calls update the visible indicator in place;
	// the tracker feeds it a counter as polls come back.
	tracker := StartTracker(ctx, d.client, profile, sessionID, d.logger,
		WithProgressHandler(func(snapshot ProgressSnapshot) {
			if snapshot.Total > 0 {
				d.host.ShowProgress(fmt.Sprintf("%s (%d/%d)", message, snapshot.Current, snapshot.Total))
			}
		}))
	outcome, err := tracker.Wait(ctx)
	d.host.DismissProgress()
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", profile.kind, err)
	}

	if profile.kind == JobAutoScrape {
		// Auto-scrape presents its own result dialog instead of a toast.
		d.host.ShowResults(map[string]interface{}{"outcome": outcome})
	} else if message := action.SuccessMessage.Resolve(d.locale); message != "" {
		d.host.Notify(message)
	}
	d.applyOnSuccess(action.OnSuccess, outcome.Raw)

	return &DispatchResult{Kind: ResultJob, Outcome: outcome}, nil
}

func (d *Dispatcher) applyOnSuccess(directive OnSuccessDirective, response map[string]interface{}) {
	switch directive {
	case OnSuccessRefreshPage:
		d.host.RefreshPage()
	case OnSuccessClose:
		d.host.CloseDialog()
	case OnSuccessShowResults:
		d.host.ShowResults(response)
	case OnSuccessCloseDialogAndRefresh:
		d.host.CloseDialog()
		d.host.RefreshPage()
	}
}

// buildParams assembles the parameter map: context data first (minus UI
// callbacks, with legacy keys renamed), then explicit field->param
// bindings from the form data on top.
func buildParams(contextData, formData map[string]interface{}, bindings []APIParam) map[string]interface{} {
	params := make(map[string]interface{}, len(contextData)+len(bindings))

	for key, value := range contextData {
		if value != nil && reflect.TypeOf(value).Kind() == reflect.Func {
			// UI callbacks ride along in context data; they are not API
			// parameters.
			continue
		}
		if renamed, ok := legacyKeyRenames[key]; ok {
			key = renamed
		}
		params[key] = value
	}

	for _, binding := range bindings {
		value, ok := formData[binding.Field]
		if !ok {
			continue
		}
		params[binding.Param] = coerceFormValue(value)
	}

	return params
}

// coerceFormValue converts the literal strings "true"/"false" to booleans;
// form widgets serialize checkbox state as strings.
func coerceFormValue(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		switch s {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return value
}

// substitutePlaceholders replaces every {key} token in the endpoint
// template with the URL-escaped value from the union of the given source
// maps (earlier sources win), and reports which keys were consumed. An
// endpoint with no remaining tokens passes through unchanged, so
// substitution is idempotent.
func substitutePlaceholders(endpoint string, sources ...map[string]interface{}) (string, map[string]bool) {
	used := make(map[string]bool)
	if !strings.Contains(endpoint, "{") {
		return endpoint, used
	}

	substitute := func(key string, value interface{}) {
		if value != nil && reflect.TypeOf(value).Kind() == reflect.Func {
			return
		}
		token := "{" + key + "}"
		if strings.Contains(endpoint, token) {
			endpoint = strings.ReplaceAll(endpoint, token, url.PathEscape(valueToString(value)))
			used[key] = true
		}
	}

	for _, source := range sources {
		for key, value := range source {
			if used[key] {
				continue
			}
			substitute(key, value)
		}
	}

	return endpoint, used
}

// valueToString renders a parameter value for URLs. Integral floats (the
// usual JSON number decoding) print without an exponent or fraction.
func valueToString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// isJobStartEndpoint reports whether the endpoint looks like a job-start
// route (used only to pick the longer HTTP deadline; classification proper
// also requires a session_id in the response).
func isJobStartEndpoint(endpoint string) bool {
	if strings.Contains(endpoint, "/progress") {
		return false
	}
	for _, profile := range jobProfiles {
		if strings.Contains(endpoint, profile.routeFragment) {
			return true
		}
	}
	return false
}
