package handlers

import (
	"context"
	"crypto/rsa"
	"errors"
	"sync"

	"Forest/services/catalog"
	"Forest/services/envelope"
	"Forest/services/game"
	"Forest/services/keys"
	gsync "Forest/services/sync"

	"go.uber.org/zap"
)

// Presence mirrors which room a player is in.
type Presence interface {
	SetPlayerRoom(ctx context.Context, username, roomCode string) error
	ClearPlayerRoom(ctx context.Context, username, roomCode string) error
}

// Deps carries the collaborators shared by every socket handler.
type Deps struct {
	Registry *game.Registry
	Hub      *gsync.Hub
	Catalog  *catalog.Catalog
	Codec    *envelope.Codec
	Keys     *keys.Pair
	// Presence may be nil.
	Presence Presence
	Logger   *zap.Logger
}

// Client is the part of a socket.io socket the handlers talk to.
type Client interface {
	Emit(ev string, args ...any) error
}

// Session is one authenticated socket connection.
type Session struct {
	Username string
	client   Client
	sink     *sink

	mu        sync.RWMutex
	publicKey string
}

func NewSession(username, publicKey string, client Client) *Session {
	return &Session{
		Username:  username,
		client:    client,
		sink:      &sink{client: client},
		publicKey: publicKey,
	}
}

// PublicKey is the key replies to this session are sealed for.
func (s *Session) PublicKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicKey
}

// UpdatePublicKey replaces the session key; an empty key is ignored.
func (s *Session) UpdatePublicKey(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.publicKey = key
	s.mu.Unlock()
}

// sink adapts a socket to the synchronizer. Its pointer identity marks the
// connection that owns a subscription.
type sink struct {
	client Client
}

func (s *sink) Emit(event string, payload any) error {
	return s.client.Emit(event, payload)
}

var errMissingPayload = errors.New("missing payload")

// ack is the callback socket.io passes when the client asked for one.
type ack = func([]any, error)

// request splits handler args into the decrypted payload and the optional ack.
// A nil dst accepts any payload, including none.
func (d *Deps) request(args []any, dst any) (ack, error) {
	var reply ack
	if n := len(args); n > 0 {
		if fn, ok := args[n-1].(func([]any, error)); ok {
			reply = fn
			args = args[:n-1]
		}
	}
	if len(args) == 0 {
		if dst == nil {
			return reply, nil
		}
		return reply, errMissingPayload
	}
	env, err := envelope.Parse(args[0])
	if err != nil {
		return reply, err
	}
	pt, err := d.Codec.Decrypt(env, d.Keys.Private)
	if err != nil {
		return reply, err
	}
	if dst == nil {
		return reply, nil
	}
	return reply, pt.Decode(dst)
}

// respond seals payload for the session and delivers it through the ack when
// present, otherwise as event.
func (d *Deps) respond(s *Session, reply ack, event string, payload any) {
	env, err := d.Codec.EncryptJSON(payload, d.publicKey(s))
	if err != nil {
		d.Logger.Error("[SOCKET] sealing reply failed", zap.String("player", s.Username), zap.String("event", event), zap.Error(err))
		return
	}
	if reply != nil {
		reply([]any{env}, nil)
		return
	}
	if err := s.client.Emit(event, env); err != nil {
		d.Logger.Debug("[SOCKET] emit failed", zap.String("player", s.Username), zap.String("event", event), zap.Error(err))
	}
}

// fail tells only the offender why their request was rejected.
func (d *Deps) fail(s *Session, reply ack, event string, err error) {
	reason := game.PublicReason(err)
	var ue *game.UserError
	if errors.As(err, &ue) {
		d.Logger.Debug("[SOCKET] request rejected", zap.String("player", s.Username), zap.String("event", event), zap.String("reason", reason))
	} else {
		d.Logger.Error("[SOCKET] request failed", zap.String("player", s.Username), zap.String("event", event), zap.Error(err))
	}
	d.respond(s, reply, game.EventError, game.ErrorEvent{Error: reason})
}

// invalid reports an undecryptable or malformed request.
func (d *Deps) invalid(s *Session, reply ack, event string, err error) {
	d.Logger.Debug("[SOCKET] invalid request", zap.String("player", s.Username), zap.String("event", event), zap.Error(err))
	d.respond(s, reply, game.EventError, game.ErrorEvent{Error: "invalid encrypted request"})
}

func (d *Deps) publicKey(s *Session) *rsa.PublicKey {
	key := s.PublicKey()
	if key == "" {
		return nil
	}
	pub, err := keys.ParsePublicKey(key)
	if err != nil {
		return nil
	}
	return pub
}

func (d *Deps) markPresence(username, code string) {
	if d.Presence == nil {
		return
	}
	if err := d.Presence.SetPlayerRoom(context.Background(), username, code); err != nil {
		d.Logger.Warn("[SOCKET] presence update failed", zap.String("player", username), zap.Error(err))
	}
}

func (d *Deps) clearPresence(username, code string) {
	if d.Presence == nil {
		return
	}
	if err := d.Presence.ClearPlayerRoom(context.Background(), username, code); err != nil {
		d.Logger.Warn("[SOCKET] presence clear failed", zap.String("player", username), zap.Error(err))
	}
}
