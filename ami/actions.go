package ami

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// OriginateRequest describes an outbound call placed through the manager
type OriginateRequest struct {
	Channel   string // Originating channel, e.g. "SIP/101"
	Exten     string // Destination extension
	Context   string // Dialplan context
	Priority  int    // Dialplan priority, defaults to 1
	CallerID  string // Presented caller identity
	Timeout   time.Duration
	Async     bool
	Variables map[string]string
}

// Originate places an outbound call. The request is sent asynchronously by
// default so the response confirms acceptance, not call completion.
func (c *Client) Originate(ctx context.Context, req OriginateRequest) (*Frame, error) {
	if req.Channel == "" || req.Exten == "" {
		return nil, fmt.Errorf("originate requires channel and extension")
	}

	priority := req.Priority
	if priority == 0 {
		priority = 1
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	action := NewAction("Originate").
		Set("Channel", req.Channel).
		Set("Exten", req.Exten).
		Set("Context", req.Context).
		Set("Priority", strconv.Itoa(priority)).
		Set("Timeout", strconv.FormatInt(timeout.Milliseconds(), 10))

	if req.CallerID != "" {
		action.Set("CallerID", req.CallerID)
	}
	if req.Async {
		action.Set("Async", "true")
	}
	for name, value := range req.Variables {
		action.Set("Variable", fmt.Sprintf("%s=%s", name, value))
	}

	return c.SendAction(ctx, action)
}

// Hangup terminates the named channel
func (c *Client) Hangup(ctx context.Context, channel string) (*Frame, error) {
	if channel == "" {
		return nil, fmt.Errorf("hangup requires a channel")
	}
	return c.SendAction(ctx, NewAction("Hangup").Set("Channel", channel))
}

// Redirect transfers a channel to another dialplan position
func (c *Client) Redirect(ctx context.Context, channel, dialplanContext, exten string, priority int) (*Frame, error) {
	if channel == "" || exten == "" {
		return nil, fmt.Errorf("redirect requires channel and extension")
	}
	if priority == 0 {
		priority = 1
	}
	return c.SendAction(ctx, NewAction("Redirect").
		Set("Channel", channel).
		Set("Context", dialplanContext).
		Set("Exten", exten).
		Set("Priority", strconv.Itoa(priority)))
}

// Status requests the state of all active channels. The PBX answers with a
// response frame followed by a Status event per channel; the events arrive
// on the Events channel.
func (c *Client) Status(ctx context.Context) (*Frame, error) {
	return c.SendAction(ctx, NewAction("Status"))
}

// Ping verifies the manager session is alive
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.SendAction(ctx, NewAction("Ping"))
	return err
}

// Logoff politely ends the manager session. The PBX closes the socket
// afterwards, so callers should expect the connection to drop.
func (c *Client) Logoff(ctx context.Context) error {
	_, err := c.SendAction(ctx, NewAction("Logoff"))
	return err
}
