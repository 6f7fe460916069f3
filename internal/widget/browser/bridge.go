package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"codeberg.org/snonux/lingogate/internal/metrics"
	"codeberg.org/snonux/lingogate/internal/widget"
)

// DefaultListen binds a random loopback port
const DefaultListen = "127.0.0.1:0"

// Opener shows a URL to the user, usually by launching a browser
type Opener func(url string) error

type instance struct {
	container string
	opts      widget.Options
	resets    int
}

// Bridge is a widget.Global backed by browser pages
type Bridge struct {
	listen    string
	scriptURL string
	log       *slog.Logger
	metrics   *metrics.Metrics
	opener    Opener

	mu        sync.Mutex
	srv       *http.Server
	baseURL   string
	instances map[widget.Handle]*instance
}

// Option configures a Bridge
type Option func(*Bridge)

// WithOpener sets the hook called with the page URL of every new widget
func WithOpener(o Opener) Option { return func(b *Bridge) { b.opener = o } }

func WithLogger(l *slog.Logger) Option { return func(b *Bridge) { b.log = l } }

// WithMetrics also exposes m on /metrics
func WithMetrics(m *metrics.Metrics) Option { return func(b *Bridge) { b.metrics = m } }

// WithScriptURL overrides the challenge script location
func WithScriptURL(u string) Option { return func(b *Bridge) { b.scriptURL = u } }

// New creates a bridge listening on listen once loaded
func New(listen string, opts ...Option) *Bridge {
	if listen == "" {
		listen = DefaultListen
	}
	b := &Bridge{
		listen:    listen,
		scriptURL: widget.ScriptURL,
		log:       slog.Default(),
		instances: make(map[widget.Handle]*instance),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load starts the local server on first use and returns the bridge as the
// widget runtime. It has the widget.LoadFunc signature.
func (b *Bridge) Load(ctx context.Context) (widget.Global, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.srv != nil {
		return b, nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", b.listen)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", b.listen, err)
	}

	b.srv = &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	b.baseURL = "http://" + ln.Addr().String()

	go func() {
		if err := b.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error("bridge.serve.fail", "err", err)
		}
	}()
	b.log.Info("bridge.started", "url", b.baseURL)
	return b, nil
}

// BaseURL returns the server URL, empty before Load
func (b *Bridge) BaseURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baseURL
}

// URL returns the page of a rendered widget
func (b *Bridge) URL(h widget.Handle) string {
	return b.BaseURL() + "/widget/" + string(h)
}

// Close stops the local server
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	srv := b.srv
	b.srv = nil
	b.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Render registers a widget and opens its page
func (b *Bridge) Render(container string, opts widget.Options) (widget.Handle, error) {
	h := widget.Handle(uuid.NewString())

	b.mu.Lock()
	b.instances[h] = &instance{container: container, opts: opts}
	b.mu.Unlock()

	if b.opener != nil {
		if err := b.opener(b.URL(h)); err != nil {
			b.log.Warn("bridge.open.fail", "url", b.URL(h), "err", err)
		}
	}
	return h, nil
}

// Reset asks the page to start a new challenge
func (b *Bridge) Reset(h widget.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if inst, ok := b.instances[h]; ok {
		inst.resets++
	}
}

// Remove forgets a widget; its page stops polling
func (b *Bridge) Remove(h widget.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.instances, h)
}

// Handler returns the bridge routes
func (b *Bridge) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/widget/{id}", b.handlePage).Methods("GET")
	r.HandleFunc("/widget/{id}/state", b.handleState).Methods("GET")
	r.HandleFunc("/widget/{id}/event", b.handleEvent).Methods("POST")
	if b.metrics != nil {
		r.Handle("/metrics", b.metrics.Handler()).Methods("GET")
	}
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	return r
}

func (b *Bridge) lookup(r *http.Request) (widget.Handle, *instance, bool) {
	h := widget.Handle(mux.Vars(r)["id"])
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, ok := b.instances[h]
	if !ok {
		return h, nil, false
	}
	cp := *inst
	return h, &cp, true
}

func (b *Bridge) handlePage(w http.ResponseWriter, r *http.Request) {
	h, inst, ok := b.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	size := inst.opts.Size
	if size == "" {
		size = widget.SizeNormal
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := pageTmpl.Execute(w, pageData{
		ID:        string(h),
		Container: inst.container,
		ScriptURL: b.scriptURL,
		SiteKey:   inst.opts.SiteKey,
		Action:    inst.opts.Action,
		Theme:     string(inst.opts.Theme),
		Size:      string(size),
	})
	if err != nil {
		b.log.Error("bridge.page.fail", "err", err)
	}
}

type stateResponse struct {
	Reset int `json:"reset"`
}

func (b *Bridge) handleState(w http.ResponseWriter, r *http.Request) {
	_, inst, ok := b.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stateResponse{Reset: inst.resets})
}

type eventRequest struct {
	Event string `json:"event"`
	Token string `json:"token"`
}

func (b *Bridge) handleEvent(w http.ResponseWriter, r *http.Request) {
	_, inst, ok := b.lookup(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var ev eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&ev); err != nil {
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	switch ev.Event {
	case "success":
		if ev.Token == "" {
			http.Error(w, "missing token", http.StatusBadRequest)
			return
		}
		if inst.opts.OnSuccess != nil {
			inst.opts.OnSuccess(ev.Token)
		}
	case "expired":
		if inst.opts.OnExpired != nil {
			inst.opts.OnExpired()
		}
	case "error":
		if inst.opts.OnError != nil {
			inst.opts.OnError()
		}
	default:
		http.Error(w, "unknown event", http.StatusBadRequest)
		return
	}

	b.log.Debug("bridge.event", "event", ev.Event, "container", inst.container)
	w.WriteHeader(http.StatusNoContent)
}
