package widget

import (
	"context"
	"log/slog"
	"sync"

	"codeberg.org/snonux/lingogate/internal/metrics"
)

// State is the verification state surfaced by the adapter
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateTokenAcquired
	StateTokenExpiredOrError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "widgetLoading"
	case StateReady:
		return "widgetReady"
	case StateTokenAcquired:
		return "tokenAcquired"
	case StateTokenExpiredOrError:
		return "tokenExpiredOrError"
	default:
		return "unknown"
	}
}

// Adapter bridges one widget container to the rest of the client
type Adapter struct {
	loader    *ScriptLoader
	container string
	size      Size
	log       *slog.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	global     Global
	handle     Handle
	rendered   bool
	token      string
	ready      bool
	loading    bool
	failed     bool
	generation uint64
	changed    chan struct{}
	onChange   func(State)
}

// AdapterOption customises an Adapter
type AdapterOption func(*Adapter)

// WithLogger sets the adapter logger
func WithLogger(log *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.log = log }
}

// WithMetrics records widget events
func WithMetrics(m *metrics.Metrics) AdapterOption {
	return func(a *Adapter) { a.metrics = m }
}

// WithSize overrides the widget size
func WithSize(s Size) AdapterOption {
	return func(a *Adapter) { a.size = s }
}

// NewAdapter creates an adapter rendering into container
func NewAdapter(loader *ScriptLoader, container string, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		loader:    loader,
		container: container,
		size:      SizeNormal,
		log:       slog.Default(),
		changed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnChange registers fn to be called after every state change
func (a *Adapter) OnChange(fn func(State)) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Render loads the runtime if needed, clears any previous instance in the
// container and renders a fresh widget. The previous token is dropped and
// callbacks from older instances are ignored from here on. A load failure
// is logged and leaves the adapter not ready.
func (a *Adapter) Render(ctx context.Context, siteKey string, theme Theme) error {
	a.mu.Lock()
	a.loading = true
	a.failed = false
	a.mu.Unlock()
	a.notify()

	global, err := a.loader.Load(ctx)
	if err != nil {
		a.log.Error("widget.render.fail", "container", a.container, "err", err)
		a.mu.Lock()
		a.loading = false
		a.mu.Unlock()
		a.notify()
		return err
	}

	a.mu.Lock()
	if a.rendered {
		if r, ok := a.global.(Remover); ok {
			r.Remove(a.handle)
		}
		a.rendered = false
	}
	a.global = global
	a.token = ""
	a.generation++
	gen := a.generation
	a.mu.Unlock()

	handle, err := global.Render(a.container, Options{
		SiteKey: siteKey,
		Action:  Action,
		Theme:   theme,
		Size:    a.size,
		OnSuccess: func(token string) {
			a.settle(gen, token, false, "success")
		},
		OnExpired: func() {
			a.settle(gen, "", true, "expired")
		},
		OnError: func() {
			a.settle(gen, "", true, "error")
		},
	})
	if err != nil {
		a.log.Error("widget.render.fail", "container", a.container, "err", err)
		a.mu.Lock()
		a.loading = false
		a.mu.Unlock()
		a.notify()
		return err
	}

	a.mu.Lock()
	a.handle = handle
	a.rendered = true
	a.ready = true
	a.mu.Unlock()
	a.log.Debug("widget.rendered", "container", a.container, "handle", string(handle), "theme", string(theme))
	a.notify()
	return nil
}

// settle applies a widget callback if it belongs to the current instance
func (a *Adapter) settle(gen uint64, token string, failed bool, event string) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		return
	}
	a.token = token
	a.failed = failed
	a.loading = false
	a.mu.Unlock()

	a.metrics.Widget(event)
	a.log.Debug("widget.callback", "container", a.container, "event", event)
	a.notify()
}

// Refresh drops the current token and asks the widget for a new challenge.
// The widget itself is only touched once an instance exists.
func (a *Adapter) Refresh() {
	a.mu.Lock()
	a.token = ""
	a.failed = false
	a.loading = true
	global, handle, rendered := a.global, a.handle, a.rendered
	a.mu.Unlock()

	if rendered && global != nil {
		global.Reset(handle)
		a.metrics.Widget("reset")
	}
	a.notify()
}

// Token returns the current verification token, or "" when there is none
func (a *Adapter) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

// Ready reports whether a widget instance has been rendered
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Loading reports whether a challenge is in progress
func (a *Adapter) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// IsVerified reports whether a token is held and no challenge is pending
func (a *Adapter) IsVerified() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token != "" && !a.loading
}

// Handle returns the handle of the rendered instance, if any
func (a *Adapter) Handle() (Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle, a.rendered
}

// State derives the current verification state
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Adapter) stateLocked() State {
	switch {
	case a.token != "" && !a.loading:
		return StateTokenAcquired
	case a.loading:
		return StateLoading
	case a.failed:
		return StateTokenExpiredOrError
	case a.ready:
		return StateReady
	default:
		return StateIdle
	}
}

// WaitVerified blocks until a token is available or ctx is done
func (a *Adapter) WaitVerified(ctx context.Context) (string, error) {
	for {
		a.mu.Lock()
		if a.token != "" && !a.loading {
			token := a.token
			a.mu.Unlock()
			return token, nil
		}
		ch := a.changed
		a.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (a *Adapter) notify() {
	a.mu.Lock()
	close(a.changed)
	a.changed = make(chan struct{})
	fn := a.onChange
	state := a.stateLocked()
	a.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}
