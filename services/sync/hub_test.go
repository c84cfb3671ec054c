package sync

import (
	gosync "sync"
	"testing"
	"time"

	"Forest/services/envelope"
	"Forest/services/game"
	"Forest/services/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ game.Notifier = (*Hub)(nil)

type emitted struct {
	event string
	env   envelope.Envelope
}

type fakeSink struct {
	mu     gosync.Mutex
	got    []emitted
	block  chan struct{}
	notify chan struct{}
}

func newSink() *fakeSink {
	return &fakeSink{notify: make(chan struct{}, 100)}
}

func (s *fakeSink) Emit(event string, payload any) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.got = append(s.got, emitted{event: event, env: payload.(envelope.Envelope)})
	s.mu.Unlock()
	s.notify <- struct{}{}
	return nil
}

func (s *fakeSink) wait(t *testing.T, n int) []emitted {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emitted(nil), s.got...)
}

func TestBroadcastSealsPerMember(t *testing.T) {
	codec := envelope.Default(nil)
	hub := NewHub(codec, zaptest.NewLogger(t), 0)
	defer hub.Close()

	alice, err := keys.Generate(keys.DefaultBits)
	require.NoError(t, err)
	bob, err := keys.Generate(keys.DefaultBits)
	require.NoError(t, err)
	aliceKey, err := alice.PublicKeyBase64()
	require.NoError(t, err)
	bobKey, err := bob.PublicKeyBase64()
	require.NoError(t, err)

	aliceSink, bobSink, carolSink := newSink(), newSink(), newSink()
	hub.Subscribe("r1", "alice", aliceSink, aliceKey)
	hub.Subscribe("r1", "bob", bobSink, bobKey)
	hub.Subscribe("r1", "carol", carolSink, "")

	hub.Broadcast("r1", game.EventTurnStarted, game.TurnStartedEvent{Turn: 1, CurrentPlayer: "alice"})

	for _, tc := range []struct {
		sink   *fakeSink
		priv   *keys.Pair
		method envelope.Method
	}{
		{aliceSink, alice, envelope.MethodHybrid},
		{bobSink, bob, envelope.MethodHybrid},
		{carolSink, nil, envelope.MethodFallback},
	} {
		got := tc.sink.wait(t, 1)
		require.Len(t, got, 1)
		assert.Equal(t, game.EventTurnStarted, got[0].event)
		assert.Equal(t, tc.method, got[0].env.Method)

		var pt envelope.Plaintext
		if tc.priv != nil {
			pt, err = codec.Decrypt(got[0].env, tc.priv.Private)
		} else {
			pt, err = codec.Decrypt(got[0].env, nil)
		}
		require.NoError(t, err)
		var ev game.TurnStartedEvent
		require.NoError(t, pt.Decode(&ev))
		assert.Equal(t, "alice", ev.CurrentPlayer)
	}

	// bob cannot open alice's copy
	_, err = codec.Decrypt(aliceSink.got[0].env, bob.Private)
	assert.Error(t, err)
}

func TestSendTargetsOneMember(t *testing.T) {
	hub := NewHub(envelope.Default(nil), zaptest.NewLogger(t), 0)
	defer hub.Close()

	a, b := newSink(), newSink()
	hub.Subscribe("r1", "a", a, "")
	hub.Subscribe("r1", "b", b, "")

	hub.Send("r1", "b", game.EventError, game.ErrorEvent{Error: "not your turn"})
	got := b.wait(t, 1)
	assert.Equal(t, game.EventError, got[0].event)

	hub.Close()
	assert.Empty(t, a.got)
}

func TestSubscribeReplacesPreviousSession(t *testing.T) {
	hub := NewHub(envelope.Default(nil), zaptest.NewLogger(t), 0)
	defer hub.Close()

	old, current := newSink(), newSink()
	hub.Subscribe("r1", "a", old, "")
	hub.Subscribe("r1", "a", current, "")

	// the stale transport closing must not drop the new session
	hub.Detach("r1", "a", old)
	assert.Equal(t, []string{"a"}, hub.Members("r1"))

	hub.Broadcast("r1", game.EventNewPlayer, game.PlayerEvent{Username: "x"})
	current.wait(t, 1)
	assert.Empty(t, old.got)

	hub.Detach("r1", "a", current)
	assert.Empty(t, hub.Members("r1"))
}

func TestSlowMemberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(envelope.Default(nil), zaptest.NewLogger(t), 1)

	slow := newSink()
	slow.block = make(chan struct{})
	fast := newSink()
	hub.Subscribe("r1", "slow", slow, "")
	hub.Subscribe("r1", "fast", fast, "")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			hub.Broadcast("r1", game.EventTurnExpired, game.TurnExpiredEvent{Turn: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow member")
	}

	// slow holds one event in Emit and one in its queue at most
	assert.GreaterOrEqual(t, hub.Dropped(), int64(3))
	assert.NotEmpty(t, fast.wait(t, 1))

	close(slow.block)
	hub.Close()
}

func TestTeardownStopsDelivery(t *testing.T) {
	hub := NewHub(envelope.Default(nil), zaptest.NewLogger(t), 0)
	defer hub.Close()

	a := newSink()
	hub.Subscribe("r1", "a", a, "")
	hub.Teardown("r1")
	hub.Broadcast("r1", game.EventGameEnded, game.GameEndedEvent{Winner: "tie"})

	assert.Empty(t, hub.Members("r1"))
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, a.got)
}
