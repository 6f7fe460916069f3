package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/snonux/lingogate/internal/logging"
	"codeberg.org/snonux/lingogate/internal/metrics"
	"codeberg.org/snonux/lingogate/internal/widget"
)

func postEvent(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestBridge_PageAndEvents(t *testing.T) {
	b := New("", WithLogger(logging.Discard()), WithScriptURL("https://example.test/api.js"))
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	var got []string
	h, err := b.Render("turnstile", widget.Options{
		SiteKey:   "site-123",
		Action:    widget.Action,
		Theme:     widget.ThemeDark,
		OnSuccess: func(token string) { got = append(got, "success:"+token) },
		OnExpired: func() { got = append(got, "expired") },
		OnError:   func() { got = append(got, "error") },
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	resp, err := http.Get(srv.URL + "/widget/" + string(h))
	if err != nil {
		t.Fatal(err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"site-123", "web-client", "dark", "normal", "https://example.test/api.js", "turnstile"} {
		if !bytes.Contains(page, []byte(want)) {
			t.Errorf("page missing %q", want)
		}
	}

	event := srv.URL + "/widget/" + string(h) + "/event"
	if code := postEvent(t, event, `{"event":"success","token":"tok-1"}`); code != http.StatusNoContent {
		t.Errorf("success status = %d", code)
	}
	if code := postEvent(t, event, `{"event":"expired"}`); code != http.StatusNoContent {
		t.Errorf("expired status = %d", code)
	}
	if code := postEvent(t, event, `{"event":"error"}`); code != http.StatusNoContent {
		t.Errorf("error status = %d", code)
	}

	want := []string{"success:tok-1", "expired", "error"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("callbacks = %v, want %v", got, want)
	}
}

func TestBridge_BadEvents(t *testing.T) {
	b := New("", WithLogger(logging.Discard()))
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	h, _ := b.Render("c", widget.Options{})
	event := srv.URL + "/widget/" + string(h) + "/event"

	tests := map[string]int{
		`not json`:                       http.StatusBadRequest,
		`{"event":"success"}`:            http.StatusBadRequest,
		`{"event":"solved","token":"x"}`: http.StatusBadRequest,
	}
	for body, want := range tests {
		if code := postEvent(t, event, body); code != want {
			t.Errorf("POST %s = %d, want %d", body, code, want)
		}
	}

	if code := postEvent(t, srv.URL+"/widget/unknown/event", `{"event":"error"}`); code != http.StatusNotFound {
		t.Errorf("unknown widget = %d, want 404", code)
	}
}

func TestBridge_ResetAndRemove(t *testing.T) {
	b := New("", WithLogger(logging.Discard()))
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	h, _ := b.Render("c", widget.Options{})
	state := func() (int, int) {
		resp, err := http.Get(srv.URL + "/widget/" + string(h) + "/state")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var s stateResponse
		_ = json.NewDecoder(resp.Body).Decode(&s)
		return resp.StatusCode, s.Reset
	}

	if code, n := state(); code != http.StatusOK || n != 0 {
		t.Errorf("state = %d/%d", code, n)
	}
	b.Reset(h)
	b.Reset(h)
	if _, n := state(); n != 2 {
		t.Errorf("resets = %d, want 2", n)
	}

	b.Remove(h)
	if code, _ := state(); code != http.StatusNotFound {
		t.Errorf("state after remove = %d, want 404", code)
	}
}

func TestBridge_Metrics(t *testing.T) {
	m := metrics.New()
	m.Widget("success")
	b := New("", WithLogger(logging.Discard()), WithMetrics(m))
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "lingogate_widget_events_total") {
		t.Errorf("metrics output missing widget counter:\n%s", body)
	}
}

func TestBridge_WithAdapter(t *testing.T) {
	var opened []string
	b := New(DefaultListen, WithLogger(logging.Discard()), WithOpener(func(url string) error {
		opened = append(opened, url)
		return nil
	}))
	defer b.Close(context.Background())

	adapter := widget.NewAdapter(widget.NewScriptLoader(b.Load), "turnstile", widget.WithLogger(logging.Discard()))
	if err := adapter.Render(context.Background(), "site", widget.ThemeAuto); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(opened) != 1 || !strings.HasPrefix(opened[0], b.BaseURL()+"/widget/") {
		t.Fatalf("opened = %v", opened)
	}

	if code := postEvent(t, opened[0]+"/event", `{"event":"success","token":"real"}`); code != http.StatusNoContent {
		t.Fatalf("event status = %d", code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	token, err := adapter.WaitVerified(ctx)
	if err != nil || token != "real" {
		t.Errorf("WaitVerified() = %q, %v", token, err)
	}

	// a second render replaces the page
	if err := adapter.Render(context.Background(), "site", widget.ThemeAuto); err != nil {
		t.Fatal(err)
	}
	if code := postEvent(t, opened[0]+"/event", `{"event":"error"}`); code != http.StatusNotFound {
		t.Errorf("old page event = %d, want 404", code)
	}
}

func TestChain(t *testing.T) {
	var buf bytes.Buffer
	var called bool
	o := Chain(PrintOpener(&buf), nil, func(string) error { called = true; return nil })
	if err := o("http://x"); err != nil {
		t.Fatal(err)
	}
	if !called || !strings.Contains(buf.String(), "http://x") {
		t.Errorf("Chain() output %q, called %v", buf.String(), called)
	}
}
