// Package sync delivers room events to every subscribed participant, each
// copy sealed for that participant's key.
package sync

import (
	"crypto/rsa"
	"encoding/json"
	gosync "sync"
	"sync/atomic"

	"Forest/services/envelope"
	"Forest/services/keys"

	"go.uber.org/zap"
)

const DefaultBuffer = 32

// Sink is a participant's transport session.
type Sink interface {
	Emit(event string, payload any) error
}

type message struct {
	event string
	data  []byte
}

type subscriber struct {
	participant string
	sink        Sink
	pub         *rsa.PublicKey
	out         chan message
}

// Hub keeps one buffered outbound queue per room member. A member whose queue
// is full misses the event and is expected to pull a snapshot.
type Hub struct {
	mu     gosync.Mutex
	rooms  map[string]map[string]*subscriber
	closed bool
	wg     gosync.WaitGroup

	codec   *envelope.Codec
	logger  *zap.Logger
	buffer  int
	dropped atomic.Int64
}

func NewHub(codec *envelope.Codec, logger *zap.Logger, buffer int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		rooms:  make(map[string]map[string]*subscriber),
		codec:  codec,
		logger: logger.Named("sync"),
		buffer: buffer,
	}
}

// Subscribe attaches sink as participant's session in room, replacing any
// previous session. An unusable public key means the member receives
// fallback envelopes.
func (h *Hub) Subscribe(room, participant string, sink Sink, publicKey string) {
	var pub *rsa.PublicKey
	if publicKey != "" {
		var err error
		if pub, err = keys.ParsePublicKey(publicKey); err != nil {
			h.logger.Warn("[SYNC] unusable public key, member gets fallback envelopes",
				zap.String("room", room), zap.String("player", participant), zap.Error(err))
		}
	}

	sub := &subscriber{
		participant: participant,
		sink:        sink,
		pub:         pub,
		out:         make(chan message, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*subscriber)
		h.rooms[room] = members
	}
	if old, ok := members[participant]; ok {
		close(old.out)
	}
	members[participant] = sub

	h.wg.Add(1)
	go h.pump(room, sub)
}

func (h *Hub) pump(room string, sub *subscriber) {
	defer h.wg.Done()
	for msg := range sub.out {
		env, err := h.codec.Encrypt(msg.data, sub.pub)
		if err != nil {
			h.logger.Error("[SYNC] sealing event failed",
				zap.String("room", room), zap.String("player", sub.participant), zap.String("event", msg.event), zap.Error(err))
			continue
		}
		if err := sub.sink.Emit(msg.event, env); err != nil {
			h.logger.Debug("[SYNC] emit failed",
				zap.String("room", room), zap.String("player", sub.participant), zap.String("event", msg.event), zap.Error(err))
		}
	}
}

// Detach removes participant's subscription only if it still belongs to sink.
// A transport closing after its owner already reconnected is a no-op.
func (h *Hub) Detach(room, participant string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.rooms[room][participant]; ok && sub.sink == sink {
		h.removeLocked(room, participant)
	}
}

func (h *Hub) Unsubscribe(room, participant string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, participant)
}

func (h *Hub) removeLocked(room, participant string) {
	members := h.rooms[room]
	sub, ok := members[participant]
	if !ok {
		return
	}
	close(sub.out)
	delete(members, participant)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Teardown closes every subscription of room.
func (h *Hub) Teardown(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for participant := range h.rooms[room] {
		h.removeLocked(room, participant)
	}
}

// Broadcast queues event for every member of room without blocking.
func (h *Hub) Broadcast(room, event string, payload any) {
	data, ok := h.marshal(room, event, payload)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.rooms[room] {
		h.enqueueLocked(room, sub, message{event: event, data: data})
	}
}

// Send queues event for one member of room.
func (h *Hub) Send(room, participant, event string, payload any) {
	data, ok := h.marshal(room, event, payload)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.rooms[room][participant]; ok {
		h.enqueueLocked(room, sub, message{event: event, data: data})
	}
}

func (h *Hub) marshal(room, event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("[SYNC] marshaling event failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (h *Hub) enqueueLocked(room string, sub *subscriber, msg message) {
	select {
	case sub.out <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Warn("[SYNC] member queue full, event dropped",
			zap.String("room", room), zap.String("player", sub.participant), zap.String("event", msg.event))
	}
}

// Members lists the subscribed participants of room.
func (h *Hub) Members(room string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.rooms[room]))
	for p := range h.rooms[room] {
		out = append(out, p)
	}
	return out
}

// Dropped reports how many events were discarded for slow members.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Close ends every subscription and waits for queued events to drain.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for room, members := range h.rooms {
		for participant := range members {
			h.removeLocked(room, participant)
		}
	}
	h.mu.Unlock()
	h.wg.Wait()
}
