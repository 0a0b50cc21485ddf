package engine

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/petrijr/agentsim/internal/persistence"
	"github.com/petrijr/agentsim/pkg/api"
)

type subscription struct {
	id       uint64
	listener api.Listener
}

// eventBus appends events to the log and delivers them to listeners, one
// emission at a time.
type eventBus struct {
	emitMu deadlock.Mutex // serializes emission; gives a global total order

	subMu  deadlock.Mutex
	subs   []subscription
	nextID uint64

	log    persistence.EventStore
	logger *slog.Logger
	now    func() time.Time

	// epoch is compared against the emitting drive's epoch so that drives
	// cancelled by Reset cannot leak events into the fresh log.
	epoch atomic.Uint64
}

func newEventBus(log persistence.EventStore, logger *slog.Logger, now func() time.Time) *eventBus {
	return &eventBus{log: log, logger: logger, now: now}
}

func (b *eventBus) subscribe(l api.Listener) func() {
	if l == nil {
		return func() {}
	}

	b.subMu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, listener: l})
	b.subMu.Unlock()

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		b.subMu.Lock()
		defer b.subMu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// emit stamps and records ev, then calls every listener synchronously.
// Returns false when the event was dropped because its epoch is stale.
func (b *eventBus) emit(epoch uint64, ev api.SimulationEvent) bool {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	if epoch != b.epoch.Load() {
		return false
	}

	ev.ID = uuid.NewString()
	ev.Timestamp = b.now()
	if ev.Data != nil {
		ev.Type = ev.Data.EventType()
	}
	b.log.AppendEvent(ev)

	b.subMu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.subMu.Unlock()

	for _, s := range subs {
		b.deliver(s, ev)
	}
	return true
}

func (b *eventBus) deliver(s subscription, ev api.SimulationEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("listener panicked",
				slog.Uint64("subscription", s.id),
				slog.String("event_type", string(ev.Type)),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	s.listener(ev)
}

func (b *eventBus) currentEpoch() uint64 { return b.epoch.Load() }

// advance starts a new epoch. Emissions from older epochs are dropped from
// then on.
func (b *eventBus) advance() uint64 { return b.epoch.Add(1) }

// clearLog must not be called with engine locks held: an in-progress
// emission may be waiting on them from inside a listener.
func (b *eventBus) clearLog() {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()
	b.log.Clear()
}
