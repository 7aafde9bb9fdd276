package input

import (
	"sync"
)

// EventKind identifies a pointer or window event
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	PointerUpOutside
	Resize
	EventKindCount // Sentinel value for array sizing
)

func (k EventKind) String() string {
	switch k {
	case PointerDown:
		return "pointerdown"
	case PointerMove:
		return "pointermove"
	case PointerUp:
		return "pointerup"
	case PointerUpOutside:
		return "pointerupoutside"
	case Resize:
		return "resize"
	default:
		return "unknown"
	}
}

// Event carries a global pointer position, or the new screen size for Resize.
type Event struct {
	Kind   EventKind
	X, Y   float64
	Width  int
	Height int
}

// Handler receives events of the kind it was registered for
type Handler func(Event)

// ListenerID identifies a registration for Off
type ListenerID uint64

type listener struct {
	id ListenerID
	fn Handler
}

// Bus fans host pointer and resize events out to subscribers
type Bus struct {
	mu        sync.RWMutex
	listeners [EventKindCount][]listener
	next      ListenerID
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// On registers fn for events of kind and returns its id
func (b *Bus) On(kind EventKind, fn Handler) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	if kind < 0 || kind >= EventKindCount {
		return 0
	}

	b.next++
	b.listeners[kind] = append(b.listeners[kind], listener{id: b.next, fn: fn})
	return b.next
}

// Off removes a registration. It reports whether id was registered.
func (b *Bus) Off(id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k := range b.listeners {
		for i, l := range b.listeners[k] {
			if l.id == id {
				b.listeners[k] = append(b.listeners[k][:i:i], b.listeners[k][i+1:]...)
				return true
			}
		}
	}
	return false
}

// Emit delivers ev to the listeners of its kind in registration order.
// Handlers may call On/Off; changes apply from the next Emit.
func (b *Bus) Emit(ev Event) {
	if ev.Kind < 0 || ev.Kind >= EventKindCount {
		return
	}

	b.mu.RLock()
	ls := b.listeners[ev.Kind]
	b.mu.RUnlock()

	for _, l := range ls {
		l.fn(ev)
	}
}

// ListenerCount returns the number of live registrations
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for k := range b.listeners {
		n += len(b.listeners[k])
	}
	return n
}

// Inside reports whether (x, y) lies within a width x height window.
func Inside(x, y float64, width, height int) bool {
	return x >= 0 && y >= 0 && x < float64(width) && y < float64(height)
}
