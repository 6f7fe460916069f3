package widget_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codeberg.org/snonux/lingogate/internal/logging"
	"codeberg.org/snonux/lingogate/internal/widget"
	"codeberg.org/snonux/lingogate/internal/widget/widgettest"
)

func newAdapter(t *testing.T, g *widgettest.Global, loads *int) *widget.Adapter {
	t.Helper()
	loader := widget.NewScriptLoader(g.Loader(loads))
	return widget.NewAdapter(loader, "translator", widget.WithLogger(logging.Discard()))
}

func TestAdapter_RenderRegistersCallbacks(t *testing.T) {
	g := widgettest.NewGlobal()
	a := newAdapter(t, g, nil)

	if a.Ready() || a.IsVerified() {
		t.Fatal("fresh adapter should be neither ready nor verified")
	}
	if got := a.State(); got != widget.StateIdle {
		t.Errorf("State() = %v, want idle", got)
	}

	if err := a.Render(context.Background(), "site-key", widget.ThemeDark); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !a.Ready() {
		t.Error("adapter not ready after render")
	}
	if !a.Loading() {
		t.Error("adapter should be loading until the widget reports back")
	}
	if got := a.State(); got != widget.StateLoading {
		t.Errorf("State() = %v, want widgetLoading", got)
	}

	_, opts, ok := g.Latest()
	if !ok {
		t.Fatal("no widget rendered")
	}
	if opts.SiteKey != "site-key" || opts.Theme != widget.ThemeDark || opts.Action != widget.Action || opts.Size != widget.SizeNormal {
		t.Errorf("unexpected render options: %+v", opts)
	}

	g.Solve("tok-1")
	if !a.IsVerified() || a.Token() != "tok-1" {
		t.Errorf("after success: verified=%v token=%q", a.IsVerified(), a.Token())
	}
	if got := a.State(); got != widget.StateTokenAcquired {
		t.Errorf("State() = %v, want tokenAcquired", got)
	}
}

func TestAdapter_ExpiryAndErrorClearToken(t *testing.T) {
	tests := []struct {
		name string
		fire func(g *widgettest.Global)
	}{
		{"expired", func(g *widgettest.Global) { g.Expire() }},
		{"error", func(g *widgettest.Global) { g.Fail() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := widgettest.NewGlobal()
			a := newAdapter(t, g, nil)
			if err := a.Render(context.Background(), "k", widget.ThemeAuto); err != nil {
				t.Fatal(err)
			}
			g.Solve("tok")

			tt.fire(g)

			if a.Token() != "" || a.IsVerified() || a.Loading() {
				t.Errorf("token=%q verified=%v loading=%v", a.Token(), a.IsVerified(), a.Loading())
			}
			if got := a.State(); got != widget.StateTokenExpiredOrError {
				t.Errorf("State() = %v, want tokenExpiredOrError", got)
			}
			if !a.Ready() {
				t.Error("ready flag must survive token loss")
			}
		})
	}
}

func TestAdapter_ScriptLoadedOnce(t *testing.T) {
	g := widgettest.NewGlobal()
	loads := 0
	loader := widget.NewScriptLoader(g.Loader(&loads))

	a := widget.NewAdapter(loader, "single", widget.WithLogger(logging.Discard()))
	b := widget.NewAdapter(loader, "batch", widget.WithLogger(logging.Discard()))

	for i := 0; i < 3; i++ {
		if err := a.Render(context.Background(), "k", widget.ThemeAuto); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Render(context.Background(), "k", widget.ThemeAuto); err != nil {
		t.Fatal(err)
	}

	if loads != 1 {
		t.Errorf("script loaded %d times, want 1", loads)
	}
	if !loader.Loaded() {
		t.Error("Loaded() = false after successful load")
	}
}

func TestAdapter_RerenderInvalidatesOldInstance(t *testing.T) {
	g := widgettest.NewGlobal()
	a := newAdapter(t, g, nil)
	ctx := context.Background()

	if err := a.Render(ctx, "k", widget.ThemeAuto); err != nil {
		t.Fatal(err)
	}
	oldHandle, _ := a.Handle()
	g.Solve("old")

	if err := a.Render(ctx, "k", widget.ThemeAuto); err != nil {
		t.Fatal(err)
	}
	if a.Token() != "" {
		t.Errorf("re-render kept token %q", a.Token())
	}
	if len(g.Removes) != 1 || g.Removes[0] != oldHandle {
		t.Errorf("old instance not removed: %v", g.Removes)
	}

	// A late callback from the removed instance must be ignored
	oldOpts, ok := g.Options(oldHandle)
	if !ok {
		t.Fatal("old options not recorded")
	}
	oldOpts.OnSuccess("stale")
	if a.Token() != "" {
		t.Errorf("stale callback set token %q", a.Token())
	}

	g.Solve("fresh")
	if a.Token() != "fresh" {
		t.Errorf("Token() = %q, want fresh", a.Token())
	}
}

func TestAdapter_LoadFailure(t *testing.T) {
	loader := widget.NewScriptLoader(widgettest.FailingLoader(errors.New("offline")))
	a := widget.NewAdapter(loader, "c", widget.WithLogger(logging.Discard()))

	err := a.Render(context.Background(), "k", widget.ThemeAuto)
	if !errors.Is(err, widget.ErrScriptUnavailable) {
		t.Errorf("Render error = %v, want ErrScriptUnavailable", err)
	}
	if a.Ready() || a.Loading() {
		t.Errorf("ready=%v loading=%v after failed load", a.Ready(), a.Loading())
	}
	if loader.Loaded() {
		t.Error("failed load must not be cached")
	}
}

func TestAdapter_Refresh(t *testing.T) {
	g := widgettest.NewGlobal()
	a := newAdapter(t, g, nil)

	// No instance yet: state changes, widget untouched
	a.Refresh()
	if g.ResetCount() != 0 {
		t.Error("Refresh reset a widget that does not exist")
	}
	if !a.Loading() {
		t.Error("Refresh should mark loading")
	}

	if err := a.Render(context.Background(), "k", widget.ThemeAuto); err != nil {
		t.Fatal(err)
	}
	g.Solve("tok")

	a.Refresh()
	if a.Token() != "" || a.IsVerified() {
		t.Error("Refresh kept the spent token")
	}
	if g.ResetCount() != 1 {
		t.Errorf("ResetCount() = %d, want 1", g.ResetCount())
	}

	g.Solve("tok-2")
	if !a.IsVerified() {
		t.Error("adapter not verified after re-challenge")
	}
}

func TestAdapter_WaitVerified(t *testing.T) {
	g := widgettest.NewGlobal()
	a := newAdapter(t, g, nil)
	if err := a.Render(context.Background(), "k", widget.ThemeAuto); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Solve("late")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	token, err := a.WaitVerified(ctx)
	if err != nil {
		t.Fatalf("WaitVerified failed: %v", err)
	}
	if token != "late" {
		t.Errorf("token = %q, want late", token)
	}
}

func TestAdapter_WaitVerifiedCancelled(t *testing.T) {
	a := newAdapter(t, widgettest.NewGlobal(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := a.WaitVerified(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestAdapter_OnChange(t *testing.T) {
	g := widgettest.NewGlobal()
	a := newAdapter(t, g, nil)

	var states []widget.State
	a.OnChange(func(s widget.State) { states = append(states, s) })

	if err := a.Render(context.Background(), "k", widget.ThemeAuto); err != nil {
		t.Fatal(err)
	}
	g.Solve("tok")

	if len(states) == 0 || states[len(states)-1] != widget.StateTokenAcquired {
		t.Errorf("states = %v, want last tokenAcquired", states)
	}
}

func TestParseTheme(t *testing.T) {
	tests := map[string]widget.Theme{
		"light":  widget.ThemeLight,
		"dark":   widget.ThemeDark,
		"auto":   widget.ThemeAuto,
		"system": widget.ThemeAuto,
		"":       widget.ThemeAuto,
	}
	for in, want := range tests {
		if got := widget.ParseTheme(in); got != want {
			t.Errorf("ParseTheme(%q) = %q, want %q", in, got, want)
		}
	}
}
