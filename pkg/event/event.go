package event

import (
	"errors"
	"reflect"
)

var (
	// ErrBusClosed is returned by Post after the dispatcher has stopped.
	ErrBusClosed = errors.New("modkit: event bus closed")

	// ErrNilEvent is returned when posting a nil event.
	ErrNilEvent = errors.New("modkit: nil event")
)

// Bus is the capability modules use to exchange events.
type Bus interface {
	// Register adds a listener and returns the id used to unregister it.
	Register(l Listener) string

	// Unregister removes a listener. Unknown ids are ignored.
	Unregister(id string)

	// Post hands ev to the bus. Delivery is asynchronous.
	Post(ev any) error
}

// Listener receives the events it matches.
type Listener interface {
	Match(ev any) bool
	OnEvent(ev any)
}

// Listen returns a Listener that receives every event whose dynamic type
// is E. When E is an interface type, every event implementing it matches.
func Listen[E any](fn func(E)) Listener {
	return typedListener[E]{fn: fn}
}

type typedListener[E any] struct {
	fn func(E)
}

func (l typedListener[E]) Match(ev any) bool {
	_, ok := ev.(E)
	return ok
}

func (l typedListener[E]) OnEvent(ev any) {
	if e, ok := ev.(E); ok && l.fn != nil {
		l.fn(e)
	}
}

// TypeName returns a readable name for ev's dynamic type, used in logs.
func TypeName(ev any) string {
	if ev == nil {
		return "<nil>"
	}
	return reflect.TypeOf(ev).String()
}

// Request carries the completion callback of an event that expects a
// result. Embed it in the event type.
type Request[T any] struct {
	callback func(T)
}

// NewRequest returns a Request completed by fn.
func NewRequest[T any](fn func(T)) Request[T] {
	return Request[T]{callback: fn}
}

// Callback completes the request with v. It is a no-op without a callback.
func (r Request[T]) Callback(v T) {
	if r.callback == nil {
		return
	}
	r.callback(v)
}
