// Package event provides the in-process publish/subscribe bus used by
// game logic to notify listeners without coupling to them.
package event

import (
	"log/slog"
	"sync"
	"time"
)

// Scope selects which listeners an event addresses.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeGroup    Scope = "group"
	ScopeTargeted Scope = "targeted"
)

// Event types emitted by the game model. The taxonomy is open: the bus
// delivers any type, including ones not listed here.
const (
	TypeBump            = "bump"
	TypePlayerJoined    = "playerJoined"
	TypePlayerLeft      = "playerLeft"
	TypeSpawn           = "spawn"
	TypeScoreChange     = "scoreChange"
	TypeGameStateChange = "gameStateChange"
)

// Event is the internal envelope delivered to subscribers. It never
// travels over the wire. Payload holds a per-type struct; subscribers
// type-assert on the variant they care about.
type Event struct {
	Type      string
	Scope     Scope
	TargetID  string // set when Scope == ScopeTargeted
	Group     string // set when Scope == ScopeGroup
	Timestamp time.Time
	Payload   any
}

// Handler receives a delivered event. Delivery happens synchronously in
// the emitter's goroutine: handlers must not block, and must schedule
// real work elsewhere.
type Handler func(Event)

// Bus fans events out to subscribers registered by event type.
// The bus does not filter by scope; every subscriber for the type gets
// the full envelope and filters on Scope/TargetID/Group itself.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers fn for the given event type.
func (b *Bus) Subscribe(eventType string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], fn)
}

// Emit delivers ev to every subscriber of ev.Type in subscription order.
// A panicking subscriber is recovered and logged; remaining subscribers
// still run. Emit never panics into the caller.
func (b *Bus) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers[ev.Type]
	b.mu.RUnlock()

	for _, fn := range handlers {
		deliver(fn, ev)
	}
}

func deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked", "type", ev.Type, "scope", ev.Scope, "panic", r)
		}
	}()
	fn(ev)
}

// Global builds a global-scope event.
func Global(eventType string, payload any) Event {
	return Event{Type: eventType, Scope: ScopeGlobal, Payload: payload}
}

// Targeted builds a targeted-scope event addressed to targetID.
func Targeted(eventType, targetID string, payload any) Event {
	return Event{Type: eventType, Scope: ScopeTargeted, TargetID: targetID, Payload: payload}
}

// Grouped builds a group-scope event addressed to a named group.
func Grouped(eventType, group string, payload any) Event {
	return Event{Type: eventType, Scope: ScopeGroup, Group: group, Payload: payload}
}
