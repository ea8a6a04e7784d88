package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Kind enumerates the gameplay event payloads carried by the stream.
type Kind string

const (
	KindShot      Kind = "shot"
	KindImpact    Kind = "impact"
	KindMovement  Kind = "movement"
	KindPurchase  Kind = "purchase"
	KindLifecycle Kind = "lifecycle"
)

// Envelope carries one typed payload together with sequencing metadata.
// Exactly one payload pointer is set, matching Kind.
type Envelope struct {
	Sequence  uint64
	Kind      Kind
	Round     int
	Turn      uint64
	Shot      *ShotEvent
	Impact    *ImpactEvent
	Movement  *MovementEvent
	Purchase  *PurchaseEvent
	Lifecycle *LifecycleEvent
}

// Clone duplicates the payload so subscribers can mutate their copy safely.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Shot != nil {
		shot := *e.Shot
		clone.Shot = &shot
	}
	clone.Impact = e.Impact.Clone()
	if e.Movement != nil {
		movement := *e.Movement
		clone.Movement = &movement
	}
	if e.Purchase != nil {
		purchase := *e.Purchase
		clone.Purchase = &purchase
	}
	if e.Lifecycle != nil {
		lifecycle := *e.Lifecycle
		clone.Lifecycle = &lifecycle
	}
	return &clone
}

// Config controls retention for the stream log and subscriber buffers.
type Config struct {
	Retain int
}

const defaultRetention = 512

// maxBacklogFactor caps the log at this multiple of the retention window. A
// subscriber that never acknowledges loses replay of entries older than the
// cap instead of pinning the log for the life of the match.
const maxBacklogFactor = 4

// Stream coordinates ordered event delivery with at-least-once semantics per
// subscriber: unacknowledged events are replayed on reconnect.
type Stream struct {
	mu          sync.Mutex
	nextSeq     uint64
	retention   int
	logOrder    []uint64
	logPayloads map[uint64]*Envelope
	subscribers map[string]*subscriberState
}

// subscriberState persists acknowledgement state between transient connections.
type subscriberState struct {
	id      string
	pending []uint64
	lastAck uint64
	ch      chan *Envelope
	active  bool
}

// Subscription exposes the event channel and acknowledgement helpers.
type Subscription struct {
	id     string
	stream *Stream
	events <-chan *Envelope
	once   sync.Once
}

// ErrOutOfOrderAck signals an acknowledgement for a sequence that is not the
// subscriber's next pending event.
var ErrOutOfOrderAck = errors.New("ack sequence must match the next pending event")

// NewStream constructs a stream using the provided configuration.
func NewStream(cfg Config) *Stream {
	retention := cfg.Retain
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Stream{
		retention:   retention,
		logPayloads: make(map[uint64]*Envelope),
		subscribers: make(map[string]*subscriberState),
	}
}

// Subscribe attaches the logical subscriber and replays outstanding events.
func (s *Stream) Subscribe(ctx context.Context, subscriberID string, buffer int) (*Subscription, error) {
	if s == nil {
		return nil, errors.New("nil stream")
	}
	if subscriberID == "" {
		return nil, errors.New("subscriber id must be provided")
	}
	if buffer <= 0 {
		buffer = 32
	}

	s.mu.Lock()
	state, ok := s.subscribers[subscriberID]
	if !ok {
		state = &subscriberState{id: subscriberID}
		s.subscribers[subscriberID] = state
	}
	//1.- A reconnecting subscriber is owed every sequence above its last ack.
	replay := make([]uint64, 0)
	for _, seq := range s.logOrder {
		if seq > state.lastAck {
			replay = append(replay, seq)
		}
	}
	ch := make(chan *Envelope, buffer)
	state.ch = ch
	state.active = true
	state.pending = append([]uint64(nil), replay...)
	deliveries := make([]*Envelope, 0, len(replay))
	for _, seq := range replay {
		if payload, ok := s.logPayloads[seq]; ok {
			deliveries = append(deliveries, payload.Clone())
		}
	}
	s.mu.Unlock()

	go func() {
		//2.- Replay outstanding events immediately after subscription.
		for _, env := range deliveries {
			select {
			case <-ctx.Done():
				return
			case ch <- env:
			}
		}
	}()

	return &Subscription{id: subscriberID, stream: s, events: ch}, nil
}

// Events exposes the ordered delivery channel for the subscriber.
func (s *Subscription) Events() <-chan *Envelope {
	if s == nil {
		return nil
	}
	return s.events
}

// Ack informs the stream that the subscriber processed the given sequence.
func (s *Subscription) Ack(sequence uint64) error {
	if s == nil || s.stream == nil {
		return errors.New("subscription closed")
	}
	return s.stream.ack(s.id, sequence)
}

// Close marks the subscription inactive while preserving acknowledgement state.
func (s *Subscription) Close() {
	if s == nil || s.stream == nil {
		return
	}
	s.once.Do(func() {
		s.stream.deactivateSubscriber(s.id)
	})
}

// PublishShot enqueues a projectile launch event.
func (s *Stream) PublishShot(round int, turn uint64, shot ShotEvent) (uint64, error) {
	if s == nil {
		return 0, errors.New("nil stream")
	}
	return s.publish(&Envelope{Kind: KindShot, Round: round, Turn: turn, Shot: &shot})
}

// PublishImpact enqueues a detonation event with its splash results.
func (s *Stream) PublishImpact(round int, turn uint64, impact ImpactEvent) (uint64, error) {
	if s == nil {
		return 0, errors.New("nil stream")
	}
	return s.publish(&Envelope{Kind: KindImpact, Round: round, Turn: turn, Impact: impact.Clone()})
}

// PublishMovement enqueues a completed tank move.
func (s *Stream) PublishMovement(round int, turn uint64, movement MovementEvent) (uint64, error) {
	if s == nil {
		return 0, errors.New("nil stream")
	}
	return s.publish(&Envelope{Kind: KindMovement, Round: round, Turn: turn, Movement: &movement})
}

// PublishPurchase enqueues a between-rounds weapon purchase.
func (s *Stream) PublishPurchase(round int, purchase PurchaseEvent) (uint64, error) {
	if s == nil {
		return 0, errors.New("nil stream")
	}
	return s.publish(&Envelope{Kind: KindPurchase, Round: round, Purchase: &purchase})
}

// PublishLifecycle enqueues a round or match boundary transition.
func (s *Stream) PublishLifecycle(event LifecycleEvent) (uint64, error) {
	if s == nil {
		return 0, errors.New("nil stream")
	}
	switch event.Phase {
	case PhaseRoundStarted, PhaseRoundEnded, PhaseMatchEnded:
	default:
		return 0, fmt.Errorf("unsupported lifecycle phase %q", event.Phase)
	}
	return s.publish(&Envelope{Kind: KindLifecycle, Round: event.Round, Lifecycle: &event})
}

func (s *Stream) publish(envelope *Envelope) (uint64, error) {
	if envelope == nil {
		return 0, errors.New("envelope required")
	}

	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	envelope.Sequence = seq
	s.logPayloads[seq] = envelope
	s.logOrder = append(s.logOrder, seq)

	deliveries := make([]delivery, 0, len(s.subscribers))
	for _, state := range s.subscribers {
		state.pending = append(state.pending, seq)
		if state.active && state.ch != nil {
			deliveries = append(deliveries, delivery{ch: state.ch, payload: envelope.Clone()})
		}
	}
	s.enforceRetentionLocked()
	s.mu.Unlock()

	for _, item := range deliveries {
		//1.- Deliver without blocking; slow subscribers catch up via replay.
		select {
		case item.ch <- item.payload:
		default:
		}
	}

	return seq, nil
}

type delivery struct {
	ch      chan<- *Envelope
	payload *Envelope
}

func (s *Stream) enforceRetentionLocked() {
	if len(s.logOrder) <= s.retention {
		return
	}
	//1.- Retain at least everything the slowest subscriber has not acked.
	minAck := s.nextSeq
	for _, state := range s.subscribers {
		if state.lastAck < minAck {
			minAck = state.lastAck
		}
	}
	cutoff := s.logOrder[len(s.logOrder)-s.retention]
	pruneBefore := minAck
	if cutoff < pruneBefore {
		pruneBefore = cutoff
	}
	//2.- Past the hard cap the oldest entries go regardless of outstanding
	// acks, so a silent subscriber cannot grow the log without bound.
	if hardCap := s.retention * maxBacklogFactor; len(s.logOrder) > hardCap {
		if forced := s.logOrder[len(s.logOrder)-hardCap-1]; forced > pruneBefore {
			pruneBefore = forced
		}
	}
	if pruneBefore == 0 {
		return
	}
	idx := sort.Search(len(s.logOrder), func(i int) bool { return s.logOrder[i] > pruneBefore })
	for _, seq := range s.logOrder[:idx] {
		delete(s.logPayloads, seq)
	}
	s.logOrder = append([]uint64(nil), s.logOrder[idx:]...)

	//3.- Laggards forfeit the pruned range: advance their ack floor and drop
	// pending sequences that can no longer be replayed.
	for _, state := range s.subscribers {
		if state.lastAck >= pruneBefore {
			continue
		}
		state.lastAck = pruneBefore
		keep := sort.Search(len(state.pending), func(i int) bool { return state.pending[i] > pruneBefore })
		state.pending = append([]uint64(nil), state.pending[keep:]...)
	}
}

func (s *Stream) ack(subscriberID string, sequence uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.subscribers[subscriberID]
	if !ok {
		return fmt.Errorf("unknown subscriber %q", subscriberID)
	}
	if len(state.pending) == 0 {
		if sequence <= state.lastAck {
			return nil
		}
		return ErrOutOfOrderAck
	}
	if sequence != state.pending[0] {
		return ErrOutOfOrderAck
	}
	state.pending = state.pending[1:]
	state.lastAck = sequence
	s.enforceRetentionLocked()
	return nil
}

func (s *Stream) deactivateSubscriber(subscriberID string) {
	s.mu.Lock()
	state, ok := s.subscribers[subscriberID]
	if ok {
		state.active = false
		if state.ch != nil {
			close(state.ch)
			state.ch = nil
		}
	}
	s.mu.Unlock()
}
