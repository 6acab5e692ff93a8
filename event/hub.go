package event

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mogiioin/hlsengine/internal/observability"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrHandlerPanic wraps a value recovered from a panicking handler.
	ErrHandlerPanic = errors.New("event: handler panicked")
	// ErrPayloadType is returned by a typed handler given the wrong payload.
	ErrPayloadType = errors.New("event: unexpected payload type")
)

// Handler reacts to one event. A returned error is reported as a non-fatal
// internal exception.
type Handler func(p Payload) error

// Handle adapts a function taking a concrete payload type.
func Handle[T Payload](fn func(T) error) Handler {
	return func(p Payload) error {
		v, ok := p.(T)
		if !ok {
			return fmt.Errorf("%w: %T", ErrPayloadType, p)
		}
		return fn(v)
	}
}

type listener struct {
	id    int
	owner string
	fn    Handler
}

// Hub delivers events synchronously to registered handlers in registration
// order. It is safe to register from several goroutines, but handlers run on
// the goroutine calling Trigger.
type Hub struct {
	mu        sync.RWMutex
	listeners map[Name][]listener
	nextID    int
	session   string
	base      *slog.Logger
	logger    *slog.Logger
}

// NewHub returns a hub with a fresh session id.
func NewHub(logger *slog.Logger) *Hub {
	session := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	h := &Hub{
		listeners: make(map[Name][]listener),
		session:   session,
		base:      observability.OrDefault(logger),
	}
	h.logger = h.Logger("hub")
	return h
}

// Session returns the id of the playback session served by the hub.
func (h *Hub) Session() string { return h.session }

// Logger returns a logger carrying the session id, for components attached
// to the hub.
func (h *Hub) Logger(component string) *slog.Logger {
	return observability.WithSession(observability.WithComponent(h.base, component), h.session)
}

// On adds a single listener and returns a function removing it.
func (h *Hub) On(name Name, fn Handler) (off func()) {
	return h.add("", name, fn)
}

func (h *Hub) add(owner string, name Name, fn Handler) func() {
	if fn == nil {
		panic(fmt.Sprintf("event: nil handler for %s", name))
	}
	if !slices.Contains(Names, name) {
		panic(fmt.Sprintf("event: unknown event name %q", name))
	}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners[name] = append(h.listeners[name], listener{id: id, owner: owner, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.listeners[name] = slices.DeleteFunc(h.listeners[name], func(l listener) bool { return l.id == id })
	}
}

// Registration is the set of handlers a component registered.
type Registration struct {
	offs []func()
	once sync.Once
}

// Register adds one handler per event for owner. It panics on a nil handler
// or an unknown event name.
func (h *Hub) Register(owner string, handlers map[Name]Handler) *Registration {
	names := make([]Name, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	slices.Sort(names)

	r := &Registration{}
	for _, name := range names {
		r.offs = append(r.offs, h.add(owner, name, handlers[name]))
	}
	return r
}

// Destroy removes every handler of the registration. It is safe to call more
// than once.
func (r *Registration) Destroy() {
	r.once.Do(func() {
		for _, off := range r.offs {
			off()
		}
	})
}

// Trigger delivers p to the listeners of its event. Handler errors and panics
// are logged and re-emitted as a non-fatal internal exception, except while
// delivering an Error event.
func (h *Hub) Trigger(p Payload) {
	name := p.EventName()
	if e, ok := p.(*ErrorData); ok {
		h.logError(e)
	}

	h.mu.RLock()
	ls := slices.Clone(h.listeners[name])
	h.mu.RUnlock()

	for _, l := range ls {
		err := call(l.fn, p)
		if err == nil {
			continue
		}
		h.logger.Error("internal error while handling event",
			slog.String("event", string(name)),
			slog.String("handler", l.owner),
			slog.String("error", err.Error()),
		)
		if name == Error {
			continue
		}
		h.Trigger(&ErrorData{
			Type:    OtherError,
			Details: InternalException,
			Event:   name,
			Err:     err,
		})
	}
}

func call(fn Handler, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return fn(p)
}

func (h *Hub) logError(e *ErrorData) {
	level := slog.LevelWarn
	if e.Fatal {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("type", string(e.Type)),
		slog.String("details", string(e.Details)),
		slog.Bool("fatal", e.Fatal),
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	if e.URL != "" {
		attrs = append(attrs, slog.String("url", e.URL))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	h.logger.LogAttrs(context.Background(), level, "error event", attrs...)
}
