package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/callstreams/ami"
	"github.com/c360/callstreams/calltrack"
	"github.com/c360/callstreams/errors"
)

// fakeClient records manager actions and returns scripted results
type fakeClient struct {
	originates []ami.OriginateRequest
	hangups    []string
	err        error
}

func (f *fakeClient) Originate(_ context.Context, req ami.OriginateRequest) (*ami.Frame, error) {
	f.originates = append(f.originates, req)
	if f.err != nil {
		return nil, f.err
	}
	frame := ami.NewFrame()
	frame.Add("Response", "Success")
	frame.Add("Message", "Originate successfully queued")
	return frame, nil
}

func (f *fakeClient) Hangup(_ context.Context, channel string) (*ami.Frame, error) {
	f.hangups = append(f.hangups, channel)
	if f.err != nil {
		return nil, f.err
	}
	frame := ami.NewFrame()
	frame.Add("Response", "Success")
	frame.Add("Message", "Channel hung up")
	return frame, nil
}

func (f *fakeClient) Connected() bool { return true }

type fakeCalls struct {
	calls []calltrack.Call
}

func (f *fakeCalls) Snapshot() []calltrack.Call { return f.calls }

func newTestCommands(client *fakeClient, calls *fakeCalls) *Commands {
	status := func() Status {
		return Status{Connected: client.Connected(), ActiveCalls: len(calls.calls)}
	}
	return NewCommands(DefaultCommandsConfig(), client, calls, status, nil)
}

func TestCommands_Originate(t *testing.T) {
	client := &fakeClient{}
	cmds := newTestCommands(client, &fakeCalls{})

	reply := cmds.HandleCommand(context.Background(), Command{
		Type:       CommandOriginate,
		ToNumber:   "0501234567",
		FromNumber: "101",
	})

	assert.True(t, reply.OK)
	assert.Equal(t, CommandOriginate, reply.RequestType)
	require.Len(t, client.originates, 1)
	assert.Equal(t, "SIP/101", client.originates[0].Channel)
	assert.Equal(t, "0501234567", client.originates[0].Exten)
	assert.Equal(t, "from-internal", client.originates[0].Context)
	assert.True(t, client.originates[0].Async)
}

func TestCommands_OriginateValidation(t *testing.T) {
	client := &fakeClient{}
	cmds := newTestCommands(client, &fakeCalls{})

	reply := cmds.HandleCommand(context.Background(), Command{
		Type:     CommandOriginate,
		ToNumber: "0501234567",
	})

	assert.False(t, reply.OK)
	assert.Equal(t, ErrorKindInvalidRequest, reply.ErrorKind)
	assert.Empty(t, client.originates, "invalid command must not reach the PBX")
}

func TestCommands_Hangup(t *testing.T) {
	client := &fakeClient{}
	cmds := newTestCommands(client, &fakeCalls{})

	reply := cmds.HandleCommand(context.Background(), Command{
		Type:    CommandHangup,
		Channel: "SIP/101-00000001",
	})

	assert.True(t, reply.OK)
	assert.Equal(t, []string{"SIP/101-00000001"}, client.hangups)
}

func TestCommands_HangupRejected(t *testing.T) {
	client := &fakeClient{err: errors.WrapInvalid(
		fmt.Errorf("%w: Channel not found", errors.ErrActionRejected),
		"Client", "SendAction", "action Hangup")}
	cmds := newTestCommands(client, &fakeCalls{})

	reply := cmds.HandleCommand(context.Background(), Command{
		Type:    CommandHangup,
		Channel: "SIP/nosuch-1",
	})

	assert.False(t, reply.OK)
	assert.Equal(t, ErrorKindRejected, reply.ErrorKind)
	assert.Contains(t, reply.Message, "Channel not found")
}

func TestCommands_GetActiveCalls(t *testing.T) {
	calls := &fakeCalls{calls: []calltrack.Call{
		{Channel: "SIP/101-1", State: calltrack.StateUp},
		{Channel: "SIP/102-2", State: calltrack.StateRinging},
	}}
	cmds := newTestCommands(&fakeClient{}, calls)

	reply := cmds.HandleCommand(context.Background(), Command{Type: CommandGetActiveCalls})

	require.True(t, reply.OK)
	data, ok := reply.Data.(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["active_calls"], 2)
}

func TestCommands_GetStatus(t *testing.T) {
	cmds := newTestCommands(&fakeClient{}, &fakeCalls{calls: []calltrack.Call{{Channel: "SIP/101-1"}}})

	reply := cmds.HandleCommand(context.Background(), Command{Type: CommandGetStatus})

	require.True(t, reply.OK)
	status, ok := reply.Data.(Status)
	require.True(t, ok)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.ActiveCalls)
}

func TestCommands_UnknownType(t *testing.T) {
	cmds := newTestCommands(&fakeClient{}, &fakeCalls{})

	reply := cmds.HandleCommand(context.Background(), Command{Type: "reboot_pbx"})

	assert.False(t, reply.OK)
	assert.Equal(t, ErrorKindInvalidRequest, reply.ErrorKind)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", errors.WrapTransient(errors.ErrActionTimeout, "c", "m", "a"), ErrorKindTimeout},
		{"rejected", fmt.Errorf("%w: denied", errors.ErrActionRejected), ErrorKindRejected},
		{"connection lost", errors.ErrConnectionLost, ErrorKindConnectionLost},
		{"no connection", errors.WrapTransient(errors.ErrNoConnection, "c", "m", "a"), ErrorKindNoConnection},
		{"invalid", errors.WrapInvalid(fmt.Errorf("bad"), "c", "m", "a"), ErrorKindInvalidRequest},
		{"other", fmt.Errorf("boom"), ErrorKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}
