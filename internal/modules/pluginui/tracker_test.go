package pluginui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelhaven/reelhaven/internal/backend"
	"github.com/reelhaven/reelhaven/internal/config"
)

// fastProfile shrinks the poll interval so tracker tests run quickly.
func fastProfile(kind JobKind, lenient bool) jobProfile {
	return jobProfile{
		kind:             kind,
		routeFragment:    "/scrape/media/batch",
		progressEndpoint: "/api/v1/scrape/media/batch/progress",
		pollInterval:     10 * time.Millisecond,
		lenient:          lenient,
	}
}

func newPollBackend(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return backend.NewClient(config.BackendConfig{
		BaseURL:            server.URL,
		RequestTimeout:     time.Second,
		ScrapeStartTimeout: time.Second,
		PollTimeout:        time.Second,
	}, hclog.NewNullLogger())
}

func TestTracker_CompletesAfterPolling(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	client := newPollBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		count := polls
		mu.Unlock()

		assert.Equal(t, "/api/v1/scrape/media/batch/progress/sess-1", r.URL.Path)
		payload := map[string]interface{}{
			"current": count, "total": 3,
			"current_item": fmt.Sprintf("item-%d", count),
			"completed":    count >= 3,
			"success_count": 3,
		}
		json.NewEncoder(w).Encode(payload)
	})

	var snapshots []ProgressSnapshot
	var snapMu sync.Mutex
	tracker := StartTracker(context.Background(), client, fastProfile(JobMediaScrape, false), "sess-1", hclog.NewNullLogger(),
		WithProgressHandler(func(s ProgressSnapshot) {
			snapMu.Lock()
			snapshots = append(snapshots, s)
			snapMu.Unlock()
		}))

	outcome, err := tracker.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, TrackerCompleted, tracker.State())
	assert.Equal(t, 3, outcome.Counts["succeeded"])

	snapMu.Lock()
	require.Len(t, snapshots, 3)
	assert.Equal(t, 1, snapshots[0].Current)
	assert.True(t, snapshots[2].Completed)
	snapMu.Unlock()
}

func TestTracker_CompletedFlagCoercion(t *testing.T) {
	tests := []struct {
		name         string
		completed    interface{}
		shouldFinish bool
	}{
		{name: "bool true", completed: true, shouldFinish: true},
		{name: "number one", completed: 1, shouldFinish: true},
		{name: "string true", completed: "true", shouldFinish: true},
		{name: "bool false", completed: false, shouldFinish: false},
		{name: "number zero", completed: 0, shouldFinish: false},
		{name: "string false", completed: "false", shouldFinish: false},
		{name: "missing", completed: nil, shouldFinish: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newPollBackend(t, func(w http.ResponseWriter, r *http.Request) {
				payload := map[string]interface{}{"current": 1, "total": 1}
				if tt.completed != nil {
					payload["completed"] = tt.completed
				}
				json.NewEncoder(w).Encode(payload)
			})

			tracker := StartTracker(context.Background(), client, fastProfile(JobMediaScrape, false), "sess-2", hclog.NewNullLogger())

			waitCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_, err := tracker.Wait(waitCtx)

			if tt.shouldFinish {
				require.NoError(t, err)
				assert.Equal(t, TrackerCompleted, tracker.State())
			} else {
				// Still polling when the wait deadline expires.
				assert.ErrorIs(t, err, context.DeadlineExceeded)
				assert.Equal(t, TrackerPolling, tracker.State())
				tracker.Cancel()
			}
		})
	}
}

func TestTracker_StrictAbortsOnPollFailure(t *testing.T) {
	client := newPollBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	tracker := StartTracker(context.Background(), client, fastProfile(JobMediaScrape, false), "sess-3", hclog.NewNullLogger())

	_, err := tracker.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, TrackerFailed, tracker.State())
}

func TestTracker_LenientRetriesPastPollFailure(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	client := newPollBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		count := polls
		mu.Unlock()

		// First poll fails; magnet search keeps going anyway.
		if count == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"completed":    true,
			"sites_status": []interface{}{},
		})
	})

	profile := fastProfile(JobMagnetSearch, true)
	tracker := StartTracker(context.Background(), client, profile, "sess-4", hclog.NewNullLogger())

	outcome, err := tracker.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, TrackerCompleted, tracker.State())

	mu.Lock()
	assert.GreaterOrEqual(t, polls, 2)
	mu.Unlock()
}

func TestTracker_CancellationStopsPolling(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	client := newPollBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"current": 1, "total": 10, "completed": false})
	})

	tracker := StartTracker(context.Background(), client, fastProfile(JobMediaScrape, false), "sess-5", hclog.NewNullLogger())

	// Let it poll at least once, then tear it down.
	time.Sleep(35 * time.Millisecond)
	tracker.Cancel()

	_, err := tracker.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TrackerCancelled, tracker.State())

	mu.Lock()
	after := polls
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, polls, "no polls may fire after cancellation")
	mu.Unlock()
}

func TestTracker_ContextCancellation(t *testing.T) {
	client := newPollBackend(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"completed": false})
	})

	ctx, cancel := context.WithCancel(context.Background())
	tracker := StartTracker(ctx, client, fastProfile(JobMediaScrape, false), "sess-6", hclog.NewNullLogger())
	cancel()

	_, err := tracker.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TrackerCancelled, tracker.State())
}
