package testutil

import (
	"context"
	"sync"

	"github.com/amie-labs/agentgate/internal/dispatch"
)

// ScriptedDispatcher returns a fixed outcome for every dispatch and records
// the requests it received.
type ScriptedDispatcher struct {
	mu sync.Mutex

	// Result is returned on success; Err takes precedence when set.
	Result *dispatch.Result
	Err    error

	calls []dispatch.Request
}

// Dispatch implements dispatch.Dispatcher.
func (d *ScriptedDispatcher) Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error) {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	if d.Result != nil {
		return d.Result, nil
	}
	return &dispatch.Result{ResultPayload: `{"ok":true}`}, nil
}

// Calls returns a copy of the recorded dispatch requests.
func (d *ScriptedDispatcher) Calls() []dispatch.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatch.Request, len(d.calls))
	copy(out, d.calls)
	return out
}
