package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ScriptURL is where the challenge runtime is served from
const ScriptURL = "https://challenges.cloudflare.com/turnstile/v0/api.js?render=explicit"

// Action tags every challenge rendered by this client
const Action = "web-client"

// Theme is the widget colour scheme
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps a textual theme hint to a Theme, defaulting to auto
func ParseTheme(s string) Theme {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s)
	default:
		return ThemeAuto
	}
}

// Size is the widget size
type Size string

const (
	SizeNormal  Size = "normal"
	SizeCompact Size = "compact"
)

// Handle identifies a rendered widget instance
type Handle string

// Options configures one rendered widget instance
type Options struct {
	SiteKey string
	Action  string
	Theme   Theme
	Size    Size

	OnSuccess func(token string)
	OnExpired func()
	OnError   func()
}

// Global is the loaded challenge runtime
type Global interface {
	// Render draws a widget into container and returns its handle
	Render(container string, opts Options) (Handle, error)

	// Reset re-arms the widget so it issues a fresh challenge
	Reset(h Handle)
}

// Remover is implemented by runtimes that can tear down a rendered instance
type Remover interface {
	Remove(h Handle)
}

// ErrScriptUnavailable is returned when the runtime could not be loaded
var ErrScriptUnavailable = errors.New("challenge script unavailable")

// LoadFunc loads the challenge runtime
type LoadFunc func(ctx context.Context) (Global, error)

// ScriptLoader loads the challenge runtime once and hands the same Global
// to every caller afterwards. A failed load is not cached, so a later render
// cycle may try again.
type ScriptLoader struct {
	load LoadFunc

	mu     sync.Mutex
	global Global
}

// NewScriptLoader wraps load so that it succeeds at most once
func NewScriptLoader(load LoadFunc) *ScriptLoader {
	return &ScriptLoader{load: load}
}

// Load returns the loaded runtime, loading it on first use
func (l *ScriptLoader) Load(ctx context.Context) (Global, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.global != nil {
		return l.global, nil
	}

	g, err := l.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptUnavailable, err)
	}
	if g == nil {
		return nil, ErrScriptUnavailable
	}
	l.global = g
	return g, nil
}

// Loaded reports whether the runtime has been loaded
func (l *ScriptLoader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.global != nil
}
