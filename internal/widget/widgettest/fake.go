// Package widgettest provides an in-memory challenge runtime for tests.
package widgettest

import (
	"context"
	"fmt"
	"sync"

	"codeberg.org/snonux/lingogate/internal/widget"
)

// Global is a scriptable widget.Global. Rendered instances keep their
// options so tests can fire the success, expiry and error callbacks.
type Global struct {
	mu        sync.Mutex
	next      int
	instances map[widget.Handle]widget.Options
	all       map[widget.Handle]widget.Options
	order     []widget.Handle

	// AutoToken, when set, is delivered through OnSuccess on every render and reset
	AutoToken string

	Renders []string
	Resets  []widget.Handle
	Removes []widget.Handle
}

// NewGlobal creates an empty fake runtime
func NewGlobal() *Global {
	return &Global{
		instances: make(map[widget.Handle]widget.Options),
		all:       make(map[widget.Handle]widget.Options),
	}
}

// Render records the instance and optionally auto-solves it
func (g *Global) Render(container string, opts widget.Options) (widget.Handle, error) {
	g.mu.Lock()
	g.next++
	h := widget.Handle(fmt.Sprintf("w%d", g.next))
	g.instances[h] = opts
	g.all[h] = opts
	g.order = append(g.order, h)
	g.Renders = append(g.Renders, container)
	auto := g.AutoToken
	g.mu.Unlock()

	if auto != "" && opts.OnSuccess != nil {
		opts.OnSuccess(fmt.Sprintf("%s-%d", auto, g.count()))
	}
	return h, nil
}

// Reset records the reset and optionally auto-solves the fresh challenge
func (g *Global) Reset(h widget.Handle) {
	g.mu.Lock()
	g.Resets = append(g.Resets, h)
	opts, ok := g.instances[h]
	auto := g.AutoToken
	g.mu.Unlock()

	if ok && auto != "" && opts.OnSuccess != nil {
		opts.OnSuccess(fmt.Sprintf("%s-r%d", auto, g.ResetCount()))
	}
}

// Remove records the teardown of an instance
func (g *Global) Remove(h widget.Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.instances, h)
	g.Removes = append(g.Removes, h)
}

// Latest returns the options of the most recently rendered live instance
func (g *Global) Latest() (widget.Handle, widget.Options, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.order) - 1; i >= 0; i-- {
		if opts, ok := g.instances[g.order[i]]; ok {
			return g.order[i], opts, true
		}
	}
	return "", widget.Options{}, false
}

// Options returns the options an instance was rendered with, even after removal
func (g *Global) Options(h widget.Handle) (widget.Options, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	opts, ok := g.all[h]
	return opts, ok
}

// Solve fires OnSuccess on the latest instance
func (g *Global) Solve(token string) {
	if _, opts, ok := g.Latest(); ok && opts.OnSuccess != nil {
		opts.OnSuccess(token)
	}
}

// Expire fires OnExpired on the latest instance
func (g *Global) Expire() {
	if _, opts, ok := g.Latest(); ok && opts.OnExpired != nil {
		opts.OnExpired()
	}
}

// Fail fires OnError on the latest instance
func (g *Global) Fail() {
	if _, opts, ok := g.Latest(); ok && opts.OnError != nil {
		opts.OnError()
	}
}

// ResetCount returns how many resets were requested
func (g *Global) ResetCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Resets)
}

// RenderCount returns how many instances were rendered
func (g *Global) RenderCount() int {
	return g.count()
}

func (g *Global) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Renders)
}

// Loader returns a widget.LoadFunc that hands out g and counts loads
func (g *Global) Loader(loads *int) widget.LoadFunc {
	return func(ctx context.Context) (widget.Global, error) {
		if loads != nil {
			*loads++
		}
		return g, nil
	}
}

// FailingLoader returns a widget.LoadFunc that always fails
func FailingLoader(err error) widget.LoadFunc {
	return func(ctx context.Context) (widget.Global, error) {
		return nil, err
	}
}
