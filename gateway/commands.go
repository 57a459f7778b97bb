package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/callstreams/ami"
	"github.com/c360/callstreams/calltrack"
	"github.com/c360/callstreams/errors"
)

// ActionClient is the slice of the manager client commands need
type ActionClient interface {
	Originate(ctx context.Context, req ami.OriginateRequest) (*ami.Frame, error)
	Hangup(ctx context.Context, channel string) (*ami.Frame, error)
	Connected() bool
}

// CallSource serves call snapshots without a PBX round trip
type CallSource interface {
	Snapshot() []calltrack.Call
}

// CommandHandler dispatches one client command to a reply
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd Command) Reply
}

// CommandsConfig holds configuration for command dispatch
type CommandsConfig struct {
	// OriginateContext is the dialplan context outbound calls enter
	OriginateContext string `json:"originate_context"`
	// ChannelTechnology prefixes the from-number to form the channel
	ChannelTechnology string `json:"channel_technology"`
}

// DefaultCommandsConfig returns defaults matching a stock PBX dialplan
func DefaultCommandsConfig() CommandsConfig {
	return CommandsConfig{
		OriginateContext:  "from-internal",
		ChannelTechnology: "SIP",
	}
}

// Commands translates subscriber commands into manager actions and tracker
// reads. get_active_calls and get_status are answered locally; originate and
// hangup round-trip to the PBX.
type Commands struct {
	cfg    CommandsConfig
	client ActionClient
	calls  CallSource
	status func() Status
	logger *slog.Logger
}

// NewCommands creates the command dispatcher
func NewCommands(cfg CommandsConfig, client ActionClient, calls CallSource, status func() Status, logger *slog.Logger) *Commands {
	def := DefaultCommandsConfig()
	if cfg.OriginateContext == "" {
		cfg.OriginateContext = def.OriginateContext
	}
	if cfg.ChannelTechnology == "" {
		cfg.ChannelTechnology = def.ChannelTechnology
	}
	if logger == nil {
		logger = slog.Default().With("component", "gateway-commands")
	}
	return &Commands{cfg: cfg, client: client, calls: calls, status: status, logger: logger}
}

// HandleCommand dispatches one command and always returns a reply
func (c *Commands) HandleCommand(ctx context.Context, cmd Command) Reply {
	switch cmd.Type {
	case CommandOriginate:
		return c.originate(ctx, cmd)
	case CommandHangup:
		return c.hangup(ctx, cmd)
	case CommandGetStatus:
		return okReply(CommandGetStatus, c.status())
	case CommandGetActiveCalls:
		return okReply(CommandGetActiveCalls, map[string]any{
			"active_calls": c.calls.Snapshot(),
		})
	default:
		return errReply(cmd.Type, errors.WrapInvalid(
			fmt.Errorf("unknown command type %q", cmd.Type),
			"Commands", "HandleCommand", "command dispatch"))
	}
}

func (c *Commands) originate(ctx context.Context, cmd Command) Reply {
	if cmd.ToNumber == "" || cmd.FromNumber == "" {
		return errReply(CommandOriginate, errors.WrapInvalid(
			fmt.Errorf("originate_call requires to_number and from_number"),
			"Commands", "originate", "request validation"))
	}

	frame, err := c.client.Originate(ctx, ami.OriginateRequest{
		Channel:  fmt.Sprintf("%s/%s", c.cfg.ChannelTechnology, cmd.FromNumber),
		Exten:    cmd.ToNumber,
		Context:  c.cfg.OriginateContext,
		CallerID: cmd.FromNumber,
		Async:    true,
	})
	if err != nil {
		c.logger.Warn("Originate failed", "to", cmd.ToNumber,
			"from", cmd.FromNumber, "error", err)
		return errReply(CommandOriginate, err)
	}

	return okReply(CommandOriginate, map[string]any{
		"message": frame.Message(),
	})
}

func (c *Commands) hangup(ctx context.Context, cmd Command) Reply {
	if cmd.Channel == "" {
		return errReply(CommandHangup, errors.WrapInvalid(
			fmt.Errorf("hangup_call requires a channel"),
			"Commands", "hangup", "request validation"))
	}

	frame, err := c.client.Hangup(ctx, cmd.Channel)
	if err != nil {
		c.logger.Warn("Hangup failed", "channel", cmd.Channel, "error", err)
		return errReply(CommandHangup, err)
	}

	return okReply(CommandHangup, map[string]any{
		"message": frame.Message(),
	})
}
