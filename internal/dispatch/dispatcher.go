// Package dispatch invokes the remote channel function that carries out
// approved actions (email, SMS, voice, calendar, tasks). The function is an
// opaque external service; agentgate only records its result or failure.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/amie-labs/agentgate/internal/db"
	"github.com/amie-labs/agentgate/internal/policy"
)

// Request describes one approved action handed to the channel function.
type Request struct {
	ActionID   string          `json:"action_id"`
	UserID     string          `json:"user_id"`
	ActionType string          `json:"action_type"`
	Channel    string          `json:"channel"`
	Payload    json.RawMessage `json:"payload"`
}

// Result is the channel function's response for a successful execution.
type Result struct {
	ResultPayload string `json:"result_payload"`
}

// Dispatcher executes an approved action on its external channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*Result, error)
}

// Disabled is used when no function URL is configured; every dispatch fails
// as unavailable so the failure lands on the record instead of panicking.
type Disabled struct{}

func (Disabled) Dispatch(ctx context.Context, req Request) (*Result, error) {
	return nil, policy.NewGateError(policy.KindServiceUnavailable, "dispatch is not configured")
}

// FunctionClient calls the remote channel function over HTTPS with a bearer
// token attached per call.
type FunctionClient struct {
	baseURL    string
	tokenEnv   string
	httpClient *http.Client
}

// NewFunctionClient builds a client for the channel function at baseURL.
// tokenEnv names the environment variable holding the bearer token.
func NewFunctionClient(baseURL, tokenEnv string, timeout time.Duration) *FunctionClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FunctionClient{
		baseURL:    baseURL,
		tokenEnv:   tokenEnv,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// functionError is the error shape returned by the channel function.
type functionError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type functionResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *functionError  `json:"error,omitempty"`
}

// Dispatch posts the request to {baseURL}/{channel} and maps failures onto
// the gate error taxonomy.
func (c *FunctionClient) Dispatch(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, policy.WrapGateError(policy.KindInternal, fmt.Errorf("encoding dispatch request: %w", err))
	}

	url := c.baseURL + "/" + req.Channel
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, policy.WrapGateError(policy.KindInternal, fmt.Errorf("building dispatch request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := os.Getenv(c.tokenEnv); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, policy.WrapGateError(policy.KindServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, policy.WrapGateError(policy.KindServiceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, policy.NewGateError(policy.KindRateLimited, "channel function rate limited the call")
	case resp.StatusCode >= 500:
		return nil, policy.NewGateError(policy.KindServiceUnavailable, "channel function returned %d", resp.StatusCode)
	}

	var fnResp functionResponse
	if err := json.Unmarshal(raw, &fnResp); err != nil {
		return nil, policy.WrapGateError(policy.KindInternal, fmt.Errorf("decoding dispatch response: %w", err))
	}

	if !fnResp.OK {
		kind := policy.KindInternal
		msg := "channel function reported failure"
		if fnResp.Error != nil {
			if k, ok := knownKinds[fnResp.Error.Kind]; ok {
				kind = k
			}
			if fnResp.Error.Message != "" {
				msg = fnResp.Error.Message
			}
		}
		return nil, policy.NewGateError(kind, "%s", msg)
	}

	return &Result{ResultPayload: string(fnResp.Result)}, nil
}

// knownKinds maps function error kinds onto the local taxonomy. Unknown kinds
// collapse to INTERNAL_ERROR rather than inventing new ones.
var knownKinds = map[string]policy.Kind{
	string(policy.KindInvalidRecipient):    policy.KindInvalidRecipient,
	string(policy.KindCalendarNotLinked):   policy.KindCalendarNotLinked,
	string(policy.KindCalendarAuthExpired): policy.KindCalendarAuthExpired,
	string(policy.KindRateLimited):         policy.KindRateLimited,
	string(policy.KindServiceUnavailable):  policy.KindServiceUnavailable,
	string(policy.KindPermissionDenied):    policy.KindPermissionDenied,
}

// ForAction builds the dispatch request for a pending action.
func ForAction(a *db.PendingAction) Request {
	return Request{
		ActionID:   a.ID,
		UserID:     a.UserID,
		ActionType: a.ActionType,
		Channel:    string(policy.ChannelFor(a.ActionType)),
		Payload:    json.RawMessage(a.Payload),
	}
}
