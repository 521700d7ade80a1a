package pluginui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// PollClient issues progress-poll requests. *backend.Client satisfies it.
type PollClient interface {
	Poll(ctx context.Context, path string) (map[string]interface{}, error)
}

// TrackerState is the tracker's lifecycle state
type TrackerState string

const (
	TrackerPolling   TrackerState = "polling"
	TrackerCompleted TrackerState = "completed"
	TrackerFailed    TrackerState = "failed"
	TrackerCancelled TrackerState = "cancelled"
)

// Tracker polls one backend job session until it completes, fails, or is
// cancelled. It owns exactly one timer; polls are serialized, the next one
// is armed only after the previous response has been handled. The tracker
// is awaitable: Wait blocks until a terminal state and returns the typed
// outcome instead of threading completion callbacks through dialog code.
type Tracker struct {
	sessionID string
	profile   jobProfile
	client    PollClient
	logger    hclog.Logger

	onProgress func(ProgressSnapshot)

	cancel context.CancelFunc
	done   chan struct{}

	// Written once before done is closed, read after.
	state   TrackerState
	outcome *JobOutcome
	err     error

	snapshotMu sync.Mutex
	snapshot   ProgressSnapshot
}

// TrackerOption customizes a tracker before it starts
type TrackerOption func(*Tracker)

// WithProgressHandler registers a callback invoked after every successful
// poll with the normalized snapshot. It runs on the tracker's goroutine.
func WithProgressHandler(handler func(ProgressSnapshot)) TrackerOption {
	return func(t *Tracker) { t.onProgress = handler }
}

// StartTracker begins polling the session's progress endpoint. The
// returned tracker is already running; cancel it by cancelling ctx or
// calling Cancel.
func StartTracker(ctx context.Context, client PollClient, profile jobProfile, sessionID string, logger hclog.Logger, opts ...TrackerOption) *Tracker {
	pollCtx, cancel := context.WithCancel(ctx)
	t := &Tracker{
		sessionID: sessionID,
		profile:   profile,
		client:    client,
		logger:    logger.Named("progress-tracker").With("job", string(profile.kind), "session", sessionID),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     TrackerPolling,
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.run(pollCtx)
	return t
}

// State returns the tracker's current lifecycle state.
func (t *Tracker) State() TrackerState {
	select {
	case <-t.done:
		return t.state
	default:
		return TrackerPolling
	}
}

// Progress returns the last normalized snapshot.
func (t *Tracker) Progress() ProgressSnapshot {
	t.snapshotMu.Lock()
	defer t.snapshotMu.Unlock()
	return t.snapshot
}

// Cancel stops polling. The backend job keeps running server-side; there
// is no cancel call in the backend contract, only client-side cessation.
func (t *Tracker) Cancel() {
	t.cancel()
}

// Wait blocks until the tracker reaches a terminal state and returns the
// outcome. Cancellation (of the tracker or of ctx) surfaces as ctx.Err or
// context.Canceled; poll failure as the poll error.
func (t *Tracker) Wait(ctx context.Context) (*JobOutcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()

	pollURL := fmt.Sprintf("%s/%s", t.profile.progressEndpoint, t.sessionID)
	timer := time.NewTimer(t.profile.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			t.state = TrackerCancelled
			t.err = context.Canceled
			t.logger.Debug("tracker cancelled")
			return

		case <-timer.C:
			payload, err := t.client.Poll(ctx, pollURL)
			if err != nil {
				if ctx.Err() != nil {
					t.state = TrackerCancelled
					t.err = context.Canceled
					return
				}
				if t.profile.lenient {
					// Magnet search tolerates individual poll failures;
					// sites come and go while the search runs.
					t.logger.Warn("poll failed, retrying", "error", err)
					timer.Reset(t.profile.pollInterval)
					continue
				}
				t.state = TrackerFailed
				t.err = fmt.Errorf("progress poll failed: %w", err)
				t.logger.Error("poll failed, aborting tracker", "error", err)
				return
			}

			snapshot := parseProgress(t.profile.kind, payload)
			t.snapshotMu.Lock()
			t.snapshot = snapshot
			t.snapshotMu.Unlock()
			if t.onProgress != nil {
				t.onProgress(snapshot)
			}

			if snapshot.Completed {
				t.state = TrackerCompleted
				t.outcome = buildOutcome(t.profile.kind, payload)
				t.logger.Info("job completed",
					"success", t.outcome.Success,
					"counts", t.outcome.Counts)
				return
			}

			// Re-arm only after the response has been handled so polls
			// never overlap.
			timer.Reset(t.profile.pollInterval)
		}
	}
}
