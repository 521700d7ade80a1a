package pluginui

import (
	"fmt"
	"strings"
	"time"
)

// JobKind identifies one of the long-running backend job flavors
type JobKind string

const (
	JobAutoScrape   JobKind = "auto_scrape"
	JobMagnetSearch JobKind = "magnet_search"
	JobMediaScrape  JobKind = "media_scrape"
	JobActorScrape  JobKind = "actor_scrape"
)

// jobProfile describes how one job kind is recognized and polled
type jobProfile struct {
	kind JobKind

	// routeFragment must appear in the start-call endpoint path. A path
	// containing "/progress" is never a start call, it is a poll.
	routeFragment string

	// progressEndpoint is the poll base; the session id is appended.
	progressEndpoint string

	pollInterval time.Duration

	// lenient trackers log a failed poll and keep going; strict ones abort.
	lenient bool
}

var jobProfiles = []jobProfile{
	{
		kind:             JobAutoScrape,
		routeFragment:    "/scrape/auto",
		progressEndpoint: "/api/v1/scrape/auto/progress",
		pollInterval:     500 * time.Millisecond,
	},
	{
		kind:             JobMagnetSearch,
		routeFragment:    "/magnet/search",
		progressEndpoint: "/api/v1/magnet/search/progress",
		pollInterval:     time.Second,
		lenient:          true,
	},
	{
		kind:             JobMediaScrape,
		routeFragment:    "/scrape/media/batch",
		progressEndpoint: "/api/v1/scrape/media/batch/progress",
		pollInterval:     time.Second,
	},
	{
		kind:             JobActorScrape,
		routeFragment:    "/scrape/actor/batch",
		progressEndpoint: "/api/v1/scrape/actor/batch/progress",
		pollInterval:     time.Second,
	},
}

// classifyJob decides whether a completed API call started a session-based
// job: the endpoint must contain a job route fragment, must not contain
// "/progress" (a poll call would otherwise misclassify as a job start), and
// the response must carry a session_id.
func classifyJob(endpoint string, response map[string]interface{}) (jobProfile, string, bool) {
	if strings.Contains(endpoint, "/progress") {
		return jobProfile{}, "", false
	}
	sessionID, _ := response["session_id"].(string)
	if sessionID == "" {
		return jobProfile{}, "", false
	}
	for _, profile := range jobProfiles {
		if strings.Contains(endpoint, profile.routeFragment) {
			return profile, sessionID, true
		}
	}
	return jobProfile{}, "", false
}

// ProgressSnapshot is the normalized client-side view of one poll response
type ProgressSnapshot struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	CurrentItem string `json:"current_item"`
	ItemStatus  string `json:"item_status"`
	Completed   bool   `json:"completed"`
}

// parseProgress normalizes a job-kind-specific poll response. Each kind has
// its own field names: media/actor scrape count items done, magnet search
// counts completed sites, auto scrape reports a step counter.
func parseProgress(kind JobKind, payload map[string]interface{}) ProgressSnapshot {
	snapshot := ProgressSnapshot{
		Completed: coerceBool(payload["completed"]),
	}

	switch kind {
	case JobMagnetSearch:
		sites := asList(payload["sites_status"])
		snapshot.Total = len(sites)
		for _, raw := range sites {
			site, ok := asMap(raw)
			if !ok {
				continue
			}
			if coerceBool(site["completed"]) {
				snapshot.Current++
			}
		}
		snapshot.CurrentItem = asString(payload["current_site"])

	default:
		snapshot.Current = coerceInt(payload["current"])
		snapshot.Total = coerceInt(payload["total"])
		snapshot.CurrentItem = asString(payload["current_item"])
		snapshot.ItemStatus = asString(payload["item_status"])
	}

	return snapshot
}

// JobOutcome is the uniform terminal result of a tracked job
type JobOutcome struct {
	Kind    JobKind                `json:"kind"`
	Success bool                   `json:"success"`
	Counts  map[string]int         `json:"counts"`
	Results []interface{}          `json:"results,omitempty"`
	Message string                 `json:"message,omitempty"`
	Raw     map[string]interface{} `json:"raw,omitempty"`
}

// buildOutcome shapes a terminal poll payload into the uniform outcome
// handed back to the dispatcher's caller.
func buildOutcome(kind JobKind, payload map[string]interface{}) *JobOutcome {
	outcome := &JobOutcome{
		Kind:    kind,
		Success: true,
		Counts:  make(map[string]int),
		Message: asString(payload["message"]),
		Raw:     payload,
	}

	switch kind {
	case JobMagnetSearch:
		sites := asList(payload["sites_status"])
		outcome.Counts["sites"] = len(sites)
		succeeded := 0
		for _, raw := range sites {
			site, ok := asMap(raw)
			if !ok {
				continue
			}
			if coerceBool(site["success"]) {
				succeeded++
			}
			for _, result := range asList(site["results"]) {
				outcome.Results = append(outcome.Results, result)
			}
		}
		outcome.Counts["succeeded"] = succeeded
		outcome.Counts["failed"] = len(sites) - succeeded
		outcome.Counts["results"] = len(outcome.Results)

	default:
		outcome.Counts["total"] = coerceInt(payload["total"])
		outcome.Counts["succeeded"] = coerceInt(payload["success_count"])
		outcome.Counts["failed"] = coerceInt(payload["failed_count"])
		outcome.Results = asList(payload["results"])
		if outcome.Counts["failed"] > 0 && outcome.Counts["succeeded"] == 0 {
			outcome.Success = false
		}
	}

	return outcome
}

// coerceBool normalizes the permissive completion-flag encodings backends
// emit: booleans, 0/1 numbers, and a handful of truthy strings.
func coerceBool(v interface{}) bool {
	switch value := v.(type) {
	case bool:
		return value
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "completed", "done":
			return true
		}
		return false
	default:
		return false
	}
}

// coerceInt accepts the numeric encodings JSON and YAML decoders produce.
func coerceInt(v interface{}) int {
	switch value := v.(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &parsed); err == nil {
			return parsed
		}
		return 0
	default:
		return 0
	}
}
