package pluginui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/reelhaven/reelhaven/internal/backend"
)

// Load error kinds. All are non-fatal: a plugin that fails to load simply
// contributes no UI.
var (
	ErrManifestNotFound     = errors.New("manifest file not found")
	ErrMalformedManifest    = errors.New("manifest document is malformed")
	ErrMissingRequiredField = errors.New("manifest is missing a required field")
)

// Dispatch error kinds.
var (
	ErrInvalidAction  = errors.New("invalid action")
	ErrDialogNotFound = errors.New("dialog not found")
)

// LoadError wraps a manifest load failure with its plugin id
type LoadError struct {
	PluginID string
	Kind     error
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s: %s: %v", e.PluginID, e.Kind, e.Err)
	}
	return fmt.Sprintf("plugin %s: %s", e.PluginID, e.Kind)
}

func (e *LoadError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is lets errors.Is match a LoadError against its kind sentinel.
func (e *LoadError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// ErrorCategory buckets a dispatch failure for user-facing messaging
type ErrorCategory string

const (
	CategoryNetwork    ErrorCategory = "network"
	CategoryTimeout    ErrorCategory = "timeout"
	CategoryFormat     ErrorCategory = "format"
	CategoryPermission ErrorCategory = "permission"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryServer     ErrorCategory = "server"
	CategoryGeneric    ErrorCategory = "generic"
)

// categorizeError maps an arbitrary dispatch failure to a message category.
// Typed errors are inspected first; the remaining cases fall back to
// pattern-matching the error text.
func categorizeError(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 403 || httpErr.Status == 401:
			return CategoryPermission
		case httpErr.Status == 404:
			return CategoryNotFound
		case httpErr.Status >= 500:
			return CategoryServer
		default:
			return CategoryServer
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "timeout") || strings.Contains(text, "deadline"):
		return CategoryTimeout
	case strings.Contains(text, "connection refused"), strings.Contains(text, "no such host"),
		strings.Contains(text, "network"), strings.Contains(text, "dial tcp"):
		return CategoryNetwork
	case strings.Contains(text, "unmarshal"), strings.Contains(text, "parse"),
		strings.Contains(text, "invalid character"), strings.Contains(text, "json"):
		return CategoryFormat
	case strings.Contains(text, "permission"), strings.Contains(text, "forbidden"),
		strings.Contains(text, "unauthorized"):
		return CategoryPermission
	case strings.Contains(text, "not found"):
		return CategoryNotFound
	case strings.Contains(text, "status 5"), strings.Contains(text, "server error"):
		return CategoryServer
	}
	return CategoryGeneric
}

// genericMessages holds the fallback user-facing messages per category,
// used when a manifest declares no error_message.
var genericMessages = map[ErrorCategory]LocalizedText{
	CategoryNetwork: {
		"en": "Could not reach the server. Check your connection.",
		"ja": "サーバーに接続できません。接続を確認してください。",
	},
	CategoryTimeout: {
		"en": "The request timed out. Please try again.",
		"ja": "リクエストがタイムアウトしました。もう一度お試しください。",
	},
	CategoryFormat: {
		"en": "The server returned an unexpected response.",
		"ja": "サーバーから予期しない応答が返されました。",
	},
	CategoryPermission: {
		"en": "You do not have permission to perform this action.",
		"ja": "この操作を行う権限がありません。",
	},
	CategoryNotFound: {
		"en": "The requested item was not found.",
		"ja": "リクエストされた項目が見つかりません。",
	},
	CategoryServer: {
		"en": "The server encountered an error. Please try again later.",
		"ja": "サーバーでエラーが発生しました。後でもう一度お試しください。",
	},
	CategoryGeneric: {
		"en": "Something went wrong. Please try again.",
		"ja": "エラーが発生しました。もう一度お試しください。",
	},
}

// userMessageFor resolves the user-facing message for a dispatch failure:
// the manifest's error_message wins; otherwise the category fallback.
func userMessageFor(err error, declared LocalizedText, locale string) string {
	if msg := declared.Resolve(locale); msg != "" {
		return msg
	}
	return genericMessages[categorizeError(err)].Resolve(locale)
}
