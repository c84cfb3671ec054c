// Package participant is the participating side of the protocol: it seals
// requests for the server, opens the server's envelopes and keeps the turn
// clock in step with the server.
package participant

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"Forest/services/combat"
	"Forest/services/envelope"
	"Forest/services/game"
	"Forest/services/keys"
)

// Session holds a participant's key material and the server's public key.
// Without a private key it communicates over the fallback channel only.
type Session struct {
	mu        sync.RWMutex
	codec     *envelope.Codec
	pair      *keys.Pair
	serverKey *rsa.PublicKey
	rng       *rand.Rand
}

// NewSession builds a session. pair may be nil; serverKey may be empty
// until the server's key is fetched.
func NewSession(codec *envelope.Codec, pair *keys.Pair, serverKey string) (*Session, error) {
	s := &Session{
		codec: codec,
		pair:  pair,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if serverKey != "" {
		if err := s.SetServerKey(serverKey); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetServerKey records the server's exported public key.
func (s *Session) SetServerKey(text string) error {
	pub, err := keys.ParsePublicKey(text)
	if err != nil {
		return fmt.Errorf("server key: %w", err)
	}
	s.mu.Lock()
	s.serverKey = pub
	s.mu.Unlock()
	return nil
}

// PublicKey returns this participant's exported key, or "" when it has none.
func (s *Session) PublicKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pair == nil {
		return ""
	}
	text, err := s.pair.PublicKeyBase64()
	if err != nil {
		return ""
	}
	return text
}

// Seal marshals v and encrypts it for the server.
func (s *Session) Seal(v any) (envelope.Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return envelope.Envelope{}, err
	}
	s.mu.RLock()
	pub := s.serverKey
	s.mu.RUnlock()
	return s.codec.Encrypt(data, pub)
}

// Open decrypts a server envelope. Any transport value socket.io or an HTTP
// body produces is accepted.
func (s *Session) Open(v any) (envelope.Plaintext, error) {
	env, err := envelope.Parse(v)
	if err != nil {
		return envelope.Plaintext{}, err
	}
	s.mu.RLock()
	var priv *rsa.PrivateKey
	if s.pair != nil {
		priv = s.pair.Private
	}
	s.mu.RUnlock()
	return s.codec.Decrypt(env, priv)
}

// OpenInto decrypts v and decodes the JSON payload into dst.
func (s *Session) OpenInto(v any, dst any) error {
	pt, err := s.Open(v)
	if err != nil {
		return err
	}
	return pt.Decode(dst)
}

// ForgetKeys drops the key pair; the session falls back to symmetric envelopes.
func (s *Session) ForgetKeys() {
	s.mu.Lock()
	s.pair = nil
	s.mu.Unlock()
}

// RotateKeys generates a fresh pair. The caller must publish the new
// PublicKey to the server (login or join_room) before relying on it.
func (s *Session) RotateKeys(bits int) error {
	pair, err := keys.Generate(bits)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
	return nil
}

// Roll throws the dice of ability for a move.
func (s *Session) Roll(ability combat.Ability) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return combat.Roll(s.rng, ability.Dice)
}

// TurnTimer tracks the current turn from its turn_started announcement so
// every participant counts down to the same deadline.
type TurnTimer struct {
	Turn     int
	Owner    string
	Deadline time.Time
}

func NewTurnTimer(ev game.TurnStartedEvent) TurnTimer {
	deadline := time.UnixMilli(ev.Deadline)
	if ev.Deadline == 0 {
		deadline = time.UnixMilli(ev.StartTime).Add(time.Duration(ev.Duration) * time.Second)
	}
	return TurnTimer{Turn: ev.Turn, Owner: ev.CurrentPlayer, Deadline: deadline}
}

// TurnTimerFromSnapshot rebuilds the timer after reconnection_sync or
// get_game_state. ok is false when no turn is running.
func TurnTimerFromSnapshot(s game.Snapshot) (TurnTimer, bool) {
	if s.Current == nil {
		return TurnTimer{}, false
	}
	return TurnTimer{
		Turn:     s.Current.Number,
		Owner:    s.Current.CurrentPlayer,
		Deadline: time.UnixMilli(s.Current.Deadline),
	}, true
}

// Remaining is the time left at now, never negative.
func (t TurnTimer) Remaining(now time.Time) time.Duration {
	if d := t.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (t TurnTimer) Expired(now time.Time) bool { return t.Remaining(now) == 0 }
