package midi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"midi-fixture-control/debug"
)

var (
	ErrNoPort      = errors.New("no MIDI output port")
	ErrPortTimeout = errors.New("MIDI port listing timed out")
	ErrClosed      = errors.New("router closed")
)

// SendFunc writes one message to an open port
type SendFunc func(gomidi.Message) error

// Router sends messages to output ports by name. Ports are opened the
// first time something is sent to them and kept open until they disappear
// or the router is closed.
type Router struct {
	mu          sync.RWMutex
	defaultPort string
	senders     map[string]SendFunc
	known       map[string]bool
	closed      bool

	events   chan PortEvent
	pollRate time.Duration
	timeout  time.Duration

	listPorts func() []string
	openPort  func(name string) (SendFunc, error)
}

// Option configures a Router
type Option func(*Router)

// WithPorts replaces port enumeration and opening, mostly for tests
func WithPorts(list func() []string, open func(name string) (SendFunc, error)) Option {
	return func(r *Router) {
		r.listPorts = list
		r.openPort = open
	}
}

// WithPollRate sets how often Run looks for ports coming and going
func WithPollRate(d time.Duration) Option {
	return func(r *Router) { r.pollRate = d }
}

// WithTimeout bounds how long a port listing may take. Some backends hang
// (CoreMIDI needs `sudo killall coreaudiod midiserver` when it does).
func WithTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

// NewRouter creates a router sending to defaultPort when no port is named
func NewRouter(defaultPort string, opts ...Option) *Router {
	r := &Router{
		defaultPort: defaultPort,
		senders:     make(map[string]SendFunc),
		known:       make(map[string]bool),
		events:      make(chan PortEvent, 16),
		pollRate:    time.Second,
		timeout:     3 * time.Second,
		listPorts:   systemPorts,
		openPort:    openSystemPort,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func systemPorts() []string {
	var names []string
	for _, p := range gomidi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

func openSystemPort(name string) (SendFunc, error) {
	port, err := gomidi.FindOutPort(name)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, err
	}
	return send, nil
}

// SetDefaultPort sets the port used for messages without a port name
func (r *Router) SetDefaultPort(name string) {
	r.mu.Lock()
	r.defaultPort = name
	r.mu.Unlock()
}

// DefaultPort returns the current default port name
func (r *Router) DefaultPort() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultPort
}

// Ports lists the output ports the system offers, sorted by name
func (r *Router) Ports() ([]string, error) {
	ch := make(chan []string, 1)
	go func() {
		ch <- r.listPorts()
	}()

	select {
	case names := <-ch:
		sort.Strings(names)
		return names, nil
	case <-time.After(r.timeout):
		debug.Warn("midi", "port listing did not return within %s", r.timeout)
		return nil, ErrPortTimeout
	}
}

// Send writes msg to port, or to the default port when port is ""
func (r *Router) Send(port string, msg gomidi.Message) error {
	send, name, err := r.sender(port)
	if err != nil {
		return err
	}
	if err := send(msg); err != nil {
		// drop it so the next send reopens the port
		r.mu.Lock()
		delete(r.senders, name)
		r.mu.Unlock()
		return fmt.Errorf("send to %q: %w", name, err)
	}
	return nil
}

// sender returns a sender for the given port name, lazily opening it
func (r *Router) sender(port string) (SendFunc, string, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, "", ErrClosed
	}
	if port == "" {
		port = r.defaultPort
	}
	if port == "" {
		r.mu.RUnlock()
		return nil, "", ErrNoPort
	}
	if send, ok := r.senders[port]; ok {
		r.mu.RUnlock()
		return send, port, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if r.closed {
		return nil, "", ErrClosed
	}
	if send, ok := r.senders[port]; ok {
		return send, port, nil
	}

	send, err := r.openPort(port)
	if err != nil {
		debug.Warn("midi", "open %q: %v", port, err)
		return nil, "", fmt.Errorf("%w %q: %v", ErrNoPort, port, err)
	}
	debug.Info("midi", "opened %q", port)
	r.senders[port] = send
	return send, port, nil
}

// Events returns a channel of port appear/disappear events. It is closed
// when Run returns.
func (r *Router) Events() <-chan PortEvent {
	return r.events
}

// Run polls for port changes until ctx is done (blocking - run in goroutine)
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollRate)
	defer ticker.Stop()
	defer close(r.events)

	// Initial scan
	r.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

func (r *Router) scan(ctx context.Context) {
	names, err := r.Ports()
	if err != nil {
		// hung backend - skip this scan
		return
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true
	}

	var events []PortEvent
	r.mu.Lock()
	for _, name := range names {
		if !r.known[name] {
			r.known[name] = true
			events = append(events, PortEvent{Type: PortAdded, Name: name})
		}
	}
	var gone []string
	for name := range r.known {
		if !seen[name] {
			gone = append(gone, name)
		}
	}
	sort.Strings(gone)
	for _, name := range gone {
		delete(r.known, name)
		delete(r.senders, name)
		events = append(events, PortEvent{Type: PortRemoved, Name: name})
	}
	r.mu.Unlock()

	for _, ev := range events {
		debug.Log("midi", "port %s: %q", ev.Type, ev.Name)
		select {
		case r.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// Close forgets every open sender. Sends after Close fail with ErrClosed.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.senders = make(map[string]SendFunc)
}
