package calltrack

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/callstreams/ami"
)

func event(fields ...string) *ami.Frame {
	f := ami.NewFrame()
	for i := 0; i+1 < len(fields); i += 2 {
		f.Add(fields[i], fields[i+1])
	}
	return f
}

func newTestTracker(t *testing.T) (*Tracker, *notificationLog) {
	t.Helper()
	log := &notificationLog{}
	tracker := NewTracker(TrackerDeps{
		Name:   "test",
		Config: DefaultConfig(),
		Events: make(chan *ami.Frame),
	})
	tracker.AddListener(log.record)
	return tracker, log
}

// notificationLog captures listener deliveries for assertions
type notificationLog struct {
	mu            sync.Mutex
	notifications []Notification
}

func (l *notificationLog) record(n Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifications = append(l.notifications, n)
}

func (l *notificationLog) byType(notifyType string) []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Notification
	for _, n := range l.notifications {
		if n.Type == notifyType {
			out = append(out, n)
		}
	}
	return out
}

func TestTracker_CallLifecycle(t *testing.T) {
	tracker, log := newTestTracker(t)

	tracker.Process(event(
		"Event", "Newchannel",
		"Channel", "SIP/bevatel-001",
		"Uniqueid", "1700000000.1",
		"CallerIDNum", "101"))

	call, ok := tracker.Get("SIP/bevatel-001")
	require.True(t, ok)
	assert.Equal(t, StateInitiated, call.State)
	assert.Equal(t, "1700000000.1", call.UniqueID)
	assert.Equal(t, "101", call.CallerID)

	tracker.Process(event(
		"Event", "Newstate",
		"Channel", "SIP/bevatel-001",
		"ChannelStateDesc", "Ringing"))
	call, _ = tracker.Get("SIP/bevatel-001")
	assert.Equal(t, StateRinging, call.State)

	tracker.Process(event(
		"Event", "Newstate",
		"Channel", "SIP/bevatel-001",
		"ChannelStateDesc", "Up"))
	call, _ = tracker.Get("SIP/bevatel-001")
	assert.Equal(t, StateUp, call.State)

	tracker.Process(event(
		"Event", "Hangup",
		"Channel", "SIP/bevatel-001"))

	_, ok = tracker.Get("SIP/bevatel-001")
	assert.False(t, ok, "terminated call must leave the live set")
	assert.Equal(t, 0, tracker.ActiveCount())

	ended := log.byType(NotifyCallEnded)
	require.Len(t, ended, 1, "exactly one terminal notification")
	assert.Equal(t, StateTerminated, ended[0].Call.State)
	assert.Equal(t, "SIP/bevatel-001", ended[0].Call.Channel)
}

func TestTracker_NumericStateMapping(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Process(event("Event", "Newchannel", "Channel", "SIP/101-1"))
	tracker.Process(event("Event", "Newstate", "Channel", "SIP/101-1", "ChannelState", "5"))
	call, _ := tracker.Get("SIP/101-1")
	assert.Equal(t, StateRinging, call.State)

	tracker.Process(event("Event", "Newstate", "Channel", "SIP/101-1", "ChannelState", "6"))
	call, _ = tracker.Get("SIP/101-1")
	assert.Equal(t, StateUp, call.State)
}

func TestTracker_UnrecognizedStateLeavesCallUnchanged(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Process(event("Event", "Newchannel", "Channel", "SIP/101-1"))
	before, _ := tracker.Get("SIP/101-1")

	tracker.Process(event("Event", "Newstate", "Channel", "SIP/101-1",
		"ChannelStateDesc", "Busy", "ChannelState", "7"))

	after, _ := tracker.Get("SIP/101-1")
	assert.Equal(t, before.State, after.State)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
}

func TestTracker_SynthesizesUnknownChannel(t *testing.T) {
	tracker, log := newTestTracker(t)

	// State change for a channel with no creation event
	tracker.Process(event(
		"Event", "Newstate",
		"Channel", "SIP/ghost-001",
		"ChannelStateDesc", "Ringing"))

	call, ok := tracker.Get("SIP/ghost-001")
	require.True(t, ok, "unseen channel must be synthesized, not dropped")
	assert.Equal(t, StateRinging, call.State)

	states := log.byType(NotifyCallState)
	require.NotEmpty(t, states)
}

func TestTracker_HangupForUnknownChannelStillNotifies(t *testing.T) {
	tracker, log := newTestTracker(t)

	tracker.Process(event("Event", "Hangup", "Channel", "SIP/ghost-002"))

	assert.Equal(t, 0, tracker.ActiveCount())
	ended := log.byType(NotifyCallEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "SIP/ghost-002", ended[0].Call.Channel)
}

func TestTracker_DialRecordsDestination(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Process(event("Event", "Newchannel", "Channel", "SIP/101-1"))
	tracker.Process(event("Event", "Dial",
		"Channel", "SIP/101-1",
		"DestChannel", "SIP/102-2"))

	call, _ := tracker.Get("SIP/101-1")
	assert.Equal(t, StateInitiated, call.State, "dial must not change lifecycle state")
	assert.Equal(t, "SIP/102-2", call.DestChannel)
}

func TestTracker_EveryEventMirrored(t *testing.T) {
	tracker, log := newTestTracker(t)

	tracker.Process(event("Event", "Newchannel", "Channel", "SIP/101-1"))
	tracker.Process(event("Event", "PeerStatus", "Peer", "SIP/101"))

	raw := log.byType(NotifyAMIEvent)
	require.Len(t, raw, 2)
	assert.Equal(t, "PeerStatus", raw[1].Event["Event"])
}

func TestTracker_SnapshotAndReset(t *testing.T) {
	tracker, _ := newTestTracker(t)

	tracker.Process(event("Event", "Newchannel", "Channel", "SIP/101-1"))
	tracker.Process(event("Event", "Newchannel", "Channel", "SIP/102-2"))

	snapshot := tracker.Snapshot()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, 2, tracker.ActiveCount())

	tracker.Reset()
	assert.Equal(t, 0, tracker.ActiveCount())
	assert.Empty(t, tracker.Snapshot())
}

func TestTracker_ChannelClassification(t *testing.T) {
	tests := []struct {
		channel     string
		dialContext string
		want        CallType
	}{
		{"Dongle/gsm0-1", "", CallTypeIncomingGSM},
		{"GSM/1-1", "", CallTypeIncomingGSM},
		{"SIP/trunk-out-1", "", CallTypeSIPTrunk},
		{"SIP/101-1", "from-trunk", CallTypeSIPTrunk},
		{"SIP/101-1", "from-gsm", CallTypeIncomingGSM},
		{"SIP/101-1", "from-internal", CallTypeInternal},
		{"PJSIP/102-2", "", CallTypeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyChannel(tt.channel, tt.dialContext),
			"channel %s context %s", tt.channel, tt.dialContext)
	}
}

// redirectRecorder fakes the manager client for routing tests
type redirectRecorder struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func (r *redirectRecorder) Redirect(_ context.Context, channel, _, exten string, _ int) (*ami.Frame, error) {
	r.mu.Lock()
	r.calls = append(r.calls, channel+"->"+exten)
	r.mu.Unlock()
	select {
	case r.done <- struct{}{}:
	default:
	}
	return ami.NewFrame(), nil
}

func TestTracker_AutoRoutesIncomingGSM(t *testing.T) {
	recorder := &redirectRecorder{done: make(chan struct{}, 1)}
	cfg := DefaultConfig()
	cfg.AutoRouteExtension = "1000"

	tracker := NewTracker(TrackerDeps{
		Name:    "test",
		Config:  cfg,
		Events:  make(chan *ami.Frame),
		Actions: recorder,
	})

	tracker.Process(event("Event", "Newchannel", "Channel", "Dongle/gsm0-1"))

	select {
	case <-recorder.done:
	case <-time.After(2 * time.Second):
		t.Fatal("redirect never issued")
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []string{"Dongle/gsm0-1->1000"}, recorder.calls)
}

func TestTracker_NoAutoRouteForInternalCalls(t *testing.T) {
	recorder := &redirectRecorder{done: make(chan struct{}, 1)}
	cfg := DefaultConfig()
	cfg.AutoRouteExtension = "1000"

	tracker := NewTracker(TrackerDeps{
		Name:    "test",
		Config:  cfg,
		Events:  make(chan *ami.Frame),
		Actions: recorder,
	})

	tracker.Process(event("Event", "Newchannel", "Channel", "SIP/101-1"))

	time.Sleep(50 * time.Millisecond)
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Empty(t, recorder.calls)
}

func TestTracker_ConsumesFromChannel(t *testing.T) {
	events := make(chan *ami.Frame, 4)
	tracker := NewTracker(TrackerDeps{
		Name:   "test",
		Config: DefaultConfig(),
		Events: events,
	})
	require.NoError(t, tracker.Initialize())
	require.NoError(t, tracker.Start(context.Background()))
	defer tracker.Stop(time.Second)

	events <- event("Event", "Newchannel", "Channel", "SIP/101-1")

	require.Eventually(t, func() bool {
		return tracker.ActiveCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	health := tracker.Health()
	assert.True(t, health.Healthy)
}

func TestTracker_ConcurrentStop(t *testing.T) {
	tracker, _ := newTestTracker(t)
	require.NoError(t, tracker.Initialize())
	require.NoError(t, tracker.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tracker.Stop(time.Second))
		}()
	}
	wg.Wait()
}
