package orchestrator_test

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/snonux/lingogate/internal/api"
	"codeberg.org/snonux/lingogate/internal/logging"
	"codeberg.org/snonux/lingogate/internal/orchestrator"
	"codeberg.org/snonux/lingogate/internal/pass"
	"codeberg.org/snonux/lingogate/internal/testutil"
	"codeberg.org/snonux/lingogate/internal/translation"
	"codeberg.org/snonux/lingogate/internal/widget"
	"codeberg.org/snonux/lingogate/internal/widget/widgettest"
)

type harness struct {
	svc     *testutil.FakeService
	passes  *pass.Store
	global  *widgettest.Global
	adapter *widget.Adapter
	orch    *orchestrator.Orchestrator
	history *fakeRecorder

	mu      sync.Mutex
	notices []orchestrator.Notice
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		svc:     testutil.NewFakeService(t),
		passes:  pass.NewStore(),
		global:  widgettest.NewGlobal(),
		history: &fakeRecorder{},
	}
	log := logging.Discard()
	client := api.NewClient(api.Config{BaseURL: h.svc.URL, Logger: log}, h.passes)
	h.adapter = widget.NewAdapter(widget.NewScriptLoader(h.global.Loader(nil)), "turnstile", widget.WithLogger(log))
	h.orch = orchestrator.New(client, h.passes, h.adapter,
		orchestrator.WithLogger(log),
		orchestrator.WithRecorder(h.history),
		orchestrator.WithSiteKey(h.svc.SiteKey, h.svc.TokenHeader),
		orchestrator.WithNotifier(orchestrator.NotifierFunc(func(n orchestrator.Notice) {
			h.mu.Lock()
			h.notices = append(h.notices, n)
			h.mu.Unlock()
		})),
	)
	return h
}

// verify renders the widget and solves the challenge with token
func (h *harness) verify(t *testing.T, token string) {
	t.Helper()
	if !h.adapter.Ready() {
		if err := h.adapter.Render(context.Background(), h.svc.SiteKey, widget.ThemeAuto); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
	}
	h.global.Solve(token)
	if h.adapter.Token() != token {
		t.Fatalf("adapter token = %q, want %q", h.adapter.Token(), token)
	}
}

func (h *harness) lastNotice() orchestrator.Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.notices) == 0 {
		return orchestrator.Notice{}
	}
	return h.notices[len(h.notices)-1]
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *fakeRecorder) Record(_ context.Context, source, target, text, result string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, source+">"+target+":"+result)
	return nil
}

func (r *fakeRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestIdentityTranslationSkipsNetwork(t *testing.T) {
	pairs := []string{"en-US", "de", "zh-TW", "pt-BR"}
	texts := []string{"Hello", "  padded  ", "多语言", strings.Repeat("x", 5000)}

	h := newHarness(t)
	for _, lang := range pairs {
		for _, text := range texts {
			res, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: text, Source: lang, Target: lang})
			if err != nil {
				t.Fatalf("Translate(%s) error = %v", lang, err)
			}
			if res.Text != text || !res.Identity {
				t.Errorf("Translate(%s) = %+v, want the input unchanged", lang, res)
			}
		}
	}
	if n := h.svc.CallCount(); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
	if h.history.Len() != 0 {
		t.Error("identity translations must not be recorded")
	}
}

func TestIdentitySameLanguage(t *testing.T) {
	h := newHarness(t)
	res, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Hello", Source: "en-US", Target: "en-US"})
	if err != nil || res.Text != "Hello" {
		t.Fatalf("Translate() = %+v, %v", res, err)
	}
	if h.svc.CallCount() != 0 {
		t.Error("expected no network call")
	}
}

func TestEmptyInput(t *testing.T) {
	h := newHarness(t)
	h.passes.Set("p")

	for _, text := range []string{"", " ", "\n\t  "} {
		_, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: text, Source: "auto", Target: "de"})
		if !errors.Is(err, orchestrator.ErrEmptyInput) {
			t.Errorf("Translate(%q) error = %v, want ErrEmptyInput", text, err)
		}
		if got := h.orch.Snapshot().State; got != orchestrator.StateBlockedNoText {
			t.Errorf("state = %v, want blocked-no-text", got)
		}
	}
	if h.svc.CallCount() != 0 {
		t.Error("expected no network call")
	}
	if n := h.lastNotice(); !n.Destructive || n.Description != "Please enter text to translate" {
		t.Errorf("notice = %+v", n)
	}
}

func TestEmptyInputBeatsIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "", Source: "de", Target: "de"})
	if !errors.Is(err, orchestrator.ErrEmptyInput) {
		t.Errorf("error = %v, want ErrEmptyInput", err)
	}
}

func TestLengthLimitCountsRunes(t *testing.T) {
	h := newHarness(t)
	h.verify(t, "T1")

	_, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: strings.Repeat("é", 5001), Source: "fr-FR", Target: "de"})
	if !errors.Is(err, orchestrator.ErrLengthExceeded) {
		t.Fatalf("error = %v, want ErrLengthExceeded", err)
	}
	if h.svc.CallCount() != 0 {
		t.Fatal("length errors must not reach the network")
	}

	if _, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: strings.Repeat("é", 5000), Source: "fr-FR", Target: "de"}); err != nil {
		t.Fatalf("5000 runes should pass, got %v", err)
	}
	if h.svc.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", h.svc.CallCount())
	}
}

func TestBlockedWithoutProof(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Bonjour", Source: "auto", Target: "en-US"})
	if !errors.Is(err, orchestrator.ErrVerificationRequired) {
		t.Fatalf("error = %v, want ErrVerificationRequired", err)
	}

	snap := h.orch.Snapshot()
	if snap.State != orchestrator.StateBlockedNeedsVerification {
		t.Errorf("state = %v", snap.State)
	}
	if !snap.ShowWidget || !snap.MustVerify {
		t.Errorf("widget not armed: %+v", snap)
	}
	if h.global.RenderCount() != 1 {
		t.Errorf("renders = %d, want 1", h.global.RenderCount())
	}
	if h.svc.CallCount() != 0 {
		t.Errorf("calls = %d, want 0", h.svc.CallCount())
	}

	// a second blocked attempt does not render again
	_, _ = h.orch.Translate(context.Background(), orchestrator.Request{Text: "Bonjour", Source: "auto", Target: "en-US"})
	if h.global.RenderCount() != 1 {
		t.Errorf("renders = %d, want 1", h.global.RenderCount())
	}
}

func TestVerifiedTranslateSendsToken(t *testing.T) {
	h := newHarness(t)
	h.verify(t, "T1")

	res, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Bonjour", Source: "auto", Target: "en-US"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if res.Text != "[en-US] Bonjour" || res.Identity {
		t.Errorf("result = %+v", res)
	}

	calls := h.svc.Calls()
	if len(calls) != 1 || calls[0].Token != "T1" || calls[0].Pass != "" {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].Body.SourceLang != nil {
		t.Errorf("auto source must be sent as null")
	}

	// no pass issued: the spent token is dropped and a new challenge armed
	if h.adapter.Token() != "" {
		t.Error("token must be cleared after use")
	}
	if h.global.ResetCount() != 1 {
		t.Errorf("resets = %d, want 1", h.global.ResetCount())
	}
	if h.history.Len() != 1 {
		t.Errorf("history entries = %d, want 1", h.history.Len())
	}
	if h.orch.Snapshot().State != orchestrator.StateSettled {
		t.Errorf("state = %v", h.orch.Snapshot().State)
	}
}

func TestPassIssuedHidesWidget(t *testing.T) {
	h := newHarness(t)
	h.svc.IssuePass = "pass-1"
	h.verify(t, "T1")

	if _, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Hi", Source: "en-US", Target: "de"}); err != nil {
		t.Fatal(err)
	}
	snap := h.orch.Snapshot()
	if snap.ShowWidget || snap.MustVerify || !snap.PassPresent {
		t.Errorf("snapshot = %+v, want widget hidden with pass", snap)
	}
	if h.global.ResetCount() != 0 {
		t.Errorf("resets = %d, want 0", h.global.ResetCount())
	}

	// later calls go out with the pass even without a token
	h.global.Expire()
	if _, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Hi", Source: "en-US", Target: "it"}); err != nil {
		t.Fatal(err)
	}
	if c := h.svc.Calls()[1]; c.Pass != "pass-1" || c.Token != "" {
		t.Errorf("second call = %+v", c)
	}
}

func TestRenewedPassOverwrites(t *testing.T) {
	h := newHarness(t)
	h.passes.Set("old")
	h.svc.Respond(0, testutil.MockResponse{Headers: map[string]string{api.PassHeader: "new"}})

	if _, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Hi", Source: "auto", Target: "de"}); err != nil {
		t.Fatal(err)
	}
	if p, _ := h.passes.Get(); p != "new" {
		t.Errorf("pass = %q, want new", p)
	}
}

func TestPassRejectedClearsAndRearms(t *testing.T) {
	h := newHarness(t)
	h.passes.Set("abc")
	h.svc.Respond(0, testutil.MockResponse{StatusCode: http.StatusForbidden, Body: `{"title":"Pass expired"}`})

	_, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Hola", Source: "es-ES", Target: "en-US"})
	if !errors.Is(err, api.ErrVerificationRejected) {
		t.Fatalf("error = %v, want VerificationRejected", err)
	}
	if err.Error() != "Pass expired" {
		t.Errorf("message = %q", err.Error())
	}

	calls := h.svc.Calls()
	if len(calls) != 1 || calls[0].Pass != "abc" {
		t.Fatalf("calls = %+v, want one call with pass abc", calls)
	}
	if h.passes.Present() {
		t.Error("pass must be cleared")
	}

	snap := h.orch.Snapshot()
	if !snap.ShowWidget || !snap.MustVerify {
		t.Errorf("widget not re-armed: %+v", snap)
	}
	if h.global.ResetCount() != 1 {
		t.Errorf("resets = %d, want 1", h.global.ResetCount())
	}
	if n := h.lastNotice(); n.Title != "Verification failed" || !n.Destructive {
		t.Errorf("notice = %+v", n)
	}

	// the cleared pass is not reused
	_, err = h.orch.Translate(context.Background(), orchestrator.Request{Text: "Hola", Source: "es-ES", Target: "en-US"})
	if !errors.Is(err, orchestrator.ErrVerificationRequired) || h.svc.CallCount() != 1 {
		t.Errorf("retry error = %v, calls = %d", err, h.svc.CallCount())
	}
}

func TestRequestFailedKeepsVerificationState(t *testing.T) {
	h := newHarness(t)
	h.passes.Set("abc")
	h.svc.Respond(0, testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: "engine down"})

	_, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Hola", Source: "auto", Target: "de"})
	if !errors.Is(err, api.ErrRequestFailed) {
		t.Fatalf("error = %v, want RequestFailed", err)
	}
	if !h.passes.Present() {
		t.Error("pass must survive a generic failure")
	}
	if n := h.lastNotice(); n.Description != "engine down" || n.Title != "Error" {
		t.Errorf("notice = %+v", n)
	}
	if h.orch.Snapshot().MustVerify {
		t.Error("generic failures must not demand verification")
	}

	// control returns to a retryable state
	if _, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "Hola", Source: "auto", Target: "de"}); err != nil {
		t.Errorf("retry error = %v", err)
	}
}

func TestBatchPassPropagation(t *testing.T) {
	h := newHarness(t)
	h.svc.IssuePass = "pass-1"
	h.verify(t, "T1")

	var seen []string
	results, err := h.orch.TranslateBatch(context.Background(), orchestrator.BatchRequest{
		Text:     "Hello",
		Source:   "en-US",
		Targets:  []string{"fr-FR", "de", "fr-FR"},
		OnTarget: func(target string) { seen = append(seen, target) },
	})
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}

	calls := h.svc.Calls()
	if len(calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(calls))
	}
	if !reflect.DeepEqual(h.svc.Targets(), []string{"fr-FR", "de", "fr-FR"}) {
		t.Errorf("call order = %v", h.svc.Targets())
	}
	if calls[0].Token != "T1" || calls[0].Pass != "" {
		t.Errorf("first call = %+v, want token proof", calls[0])
	}
	for i := 1; i < 3; i++ {
		if calls[i].Pass != "pass-1" {
			t.Errorf("call %d pass = %q, want pass-1", i, calls[i].Pass)
		}
	}

	want := []translation.Result{
		{Target: "fr-FR", Text: "[fr-FR] Hello"},
		{Target: "de", Text: "[de] Hello"},
		{Target: "fr-FR", Text: "[fr-FR] Hello"},
	}
	if !reflect.DeepEqual(results.All(), want) {
		t.Errorf("results = %v", results.All())
	}
	if !reflect.DeepEqual(seen, []string{"fr-FR", "de", "fr-FR"}) {
		t.Errorf("OnTarget = %v", seen)
	}
	if h.orch.Snapshot().ShowWidget {
		t.Error("widget should be hidden once a pass is held")
	}
}

func TestBatchFailFast(t *testing.T) {
	h := newHarness(t)
	h.verify(t, "T1")
	h.svc.Respond(1, testutil.MockResponse{StatusCode: http.StatusForbidden, Body: `{"detail":"token spent"}`})

	results, err := h.orch.TranslateBatch(context.Background(), orchestrator.BatchRequest{
		Text:    "Hello",
		Source:  "auto",
		Targets: []string{"fr-FR", "de", "it", "ja"},
	})
	if !errors.Is(err, api.ErrVerificationRejected) {
		t.Fatalf("error = %v, want VerificationRejected", err)
	}
	if !reflect.DeepEqual(h.svc.Targets(), []string{"fr-FR", "de"}) {
		t.Errorf("calls = %v, want the run to stop after de", h.svc.Targets())
	}
	if results.Len() != 1 {
		t.Errorf("results = %v, want the completed target kept", results.All())
	}
	if !h.orch.Snapshot().MustVerify {
		t.Error("rejection must re-arm verification")
	}
}

func TestBatchIdentityTargetsSkipNetwork(t *testing.T) {
	h := newHarness(t)
	h.verify(t, "T1")

	results, err := h.orch.TranslateBatch(context.Background(), orchestrator.BatchRequest{
		Text:    "Hallo",
		Source:  "de",
		Targets: []string{"de", "it", "de"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(h.svc.Targets(), []string{"it"}) {
		t.Errorf("calls = %v, want only it", h.svc.Targets())
	}
	want := []translation.Result{
		{Target: "de", Text: "Hallo"},
		{Target: "it", Text: "[it] Hallo"},
		{Target: "de", Text: "Hallo"},
	}
	if !reflect.DeepEqual(results.All(), want) {
		t.Errorf("results = %v", results.All())
	}
}

func TestBatchGuards(t *testing.T) {
	tests := []struct {
		name    string
		req     orchestrator.BatchRequest
		wantErr error
	}{
		{"empty text", orchestrator.BatchRequest{Text: " ", Source: "auto", Targets: []string{"de"}}, orchestrator.ErrEmptyInput},
		{"too long", orchestrator.BatchRequest{Text: strings.Repeat("a", 5001), Source: "auto"}, orchestrator.ErrLengthExceeded},
		{"no targets", orchestrator.BatchRequest{Text: "hi", Source: "auto"}, orchestrator.ErrNoTargetsSelected},
		{"unverified", orchestrator.BatchRequest{Text: "hi", Source: "auto", Targets: []string{"de"}}, orchestrator.ErrVerificationRequired},
		{"unverified identity only", orchestrator.BatchRequest{Text: "hi", Source: "de", Targets: []string{"de"}}, orchestrator.ErrVerificationRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			results, err := h.orch.TranslateBatch(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if results == nil || results.Len() != 0 {
				t.Errorf("results = %v", results)
			}
			if h.svc.CallCount() != 0 {
				t.Errorf("calls = %d, want 0", h.svc.CallCount())
			}
		})
	}
}

func TestConfigure(t *testing.T) {
	h := newHarness(t)
	h.svc.TokenHeader = "X-Custom-Token"

	snap := h.orch.Configure(context.Background())
	if snap.SiteKey != h.svc.SiteKey || snap.HeaderName != "X-Custom-Token" {
		t.Errorf("snapshot = %+v", snap)
	}
	if !snap.ShowWidget || h.global.RenderCount() != 1 {
		t.Errorf("widget should be shown on first load without a pass: %+v", snap)
	}
	if _, opts, ok := h.global.Latest(); !ok || opts.SiteKey != h.svc.SiteKey || opts.Action != widget.Action {
		t.Errorf("render options = %+v", opts)
	}

	h.global.Solve("T9")
	if _, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "x", Source: "auto", Target: "de"}); err != nil {
		t.Fatal(err)
	}
	if c := h.svc.Calls()[0]; c.Token != "T9" {
		t.Errorf("token under custom header = %q", c.Token)
	}
}

func TestConfigure_WithPassSkipsWidget(t *testing.T) {
	h := newHarness(t)
	h.passes.Set("p")
	if snap := h.orch.Configure(context.Background()); snap.ShowWidget {
		t.Error("widget must stay hidden while a pass is held")
	}
}

func TestConfigure_FetchFailureFallsBack(t *testing.T) {
	passes := pass.NewStore()
	client := api.NewClient(api.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, passes)
	g := widgettest.NewGlobal()
	adapter := widget.NewAdapter(widget.NewScriptLoader(g.Loader(nil)), "turnstile", widget.WithLogger(logging.Discard()))
	o := orchestrator.New(client, passes, adapter, orchestrator.WithLogger(logging.Discard()))

	snap := o.Configure(context.Background())
	if snap.SiteKey != "" || snap.HeaderName != api.DefaultTokenHeader {
		t.Errorf("snapshot = %+v", snap)
	}
	if g.RenderCount() != 0 {
		t.Error("no widget without a site key")
	}
}

type blockingClient struct {
	started chan struct{}
}

func (b *blockingClient) Translate(ctx context.Context, _ api.TranslateRequest, _ api.Proof) (*api.TranslateResponse, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingClient) SiteKey(context.Context) (*api.SiteKeyResponse, error) {
	return &api.SiteKeyResponse{}, nil
}

type tokenVerifier struct{ token string }

func (v *tokenVerifier) Render(context.Context, string, widget.Theme) error { return nil }
func (v *tokenVerifier) Refresh()                                           { v.token = "" }
func (v *tokenVerifier) Token() string                                      { return v.token }
func (v *tokenVerifier) Ready() bool                                        { return true }
func (v *tokenVerifier) IsVerified() bool                                   { return v.token != "" }

func TestBusyAndCancel(t *testing.T) {
	client := &blockingClient{started: make(chan struct{})}
	o := orchestrator.New(client, pass.NewStore(), &tokenVerifier{token: "T"}, orchestrator.WithLogger(logging.Discard()))

	errc := make(chan error, 1)
	go func() {
		_, err := o.Translate(context.Background(), orchestrator.Request{Text: "a", Source: "auto", Target: "de"})
		errc <- err
	}()
	<-client.started

	if got := o.Snapshot().State; got != orchestrator.StateInFlight {
		t.Errorf("state = %v, want in-flight", got)
	}
	if _, err := o.Translate(context.Background(), orchestrator.Request{Text: "b", Source: "auto", Target: "de"}); !errors.Is(err, orchestrator.ErrBusy) {
		t.Errorf("second action error = %v, want ErrBusy", err)
	}

	o.Cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the action")
	}
	if got := o.Snapshot().State; got != orchestrator.StateSettled {
		t.Errorf("state = %v, want settled", got)
	}
}

func TestOnChange(t *testing.T) {
	h := newHarness(t)
	var states []orchestrator.State
	h.orch.OnChange(func(s orchestrator.Snapshot) { states = append(states, s.State) })

	h.verify(t, "T1")
	if _, err := h.orch.Translate(context.Background(), orchestrator.Request{Text: "x", Source: "auto", Target: "de"}); err != nil {
		t.Fatal(err)
	}
	var sawInFlight bool
	for _, s := range states {
		if s == orchestrator.StateInFlight {
			sawInFlight = true
		}
	}
	if !sawInFlight || states[len(states)-1] != orchestrator.StateSettled {
		t.Errorf("states = %v", states)
	}
}
