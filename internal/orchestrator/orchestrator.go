package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"codeberg.org/snonux/lingogate/internal/api"
	"codeberg.org/snonux/lingogate/internal/batch"
	"codeberg.org/snonux/lingogate/internal/i18n"
	"codeberg.org/snonux/lingogate/internal/languages"
	"codeberg.org/snonux/lingogate/internal/metrics"
	"codeberg.org/snonux/lingogate/internal/pass"
	"codeberg.org/snonux/lingogate/internal/translation"
	"codeberg.org/snonux/lingogate/internal/widget"
)

const (
	// MaxCharacters is the longest accepted input, counted in runes
	MaxCharacters = 5000

	// SoftLimit is where the character counter starts warning
	SoftLimit = 4000
)

// Translator performs verified calls against the translation service
type Translator interface {
	Translate(ctx context.Context, req api.TranslateRequest, proof api.Proof) (*api.TranslateResponse, error)
	SiteKey(ctx context.Context) (*api.SiteKeyResponse, error)
}

// Verifier is the challenge widget as seen by the orchestrator
type Verifier interface {
	Render(ctx context.Context, siteKey string, theme widget.Theme) error
	Refresh()
	Token() string
	Ready() bool
	IsVerified() bool
}

// Recorder stores successful network translations
type Recorder interface {
	Record(ctx context.Context, source, target, text, result string) error
}

// State of the current or last user action
type State int

const (
	StateIdle State = iota
	StateBlockedNoText
	StateBlockedNeedsVerification
	StateInFlight
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateBlockedNoText:
		return "blocked-no-text"
	case StateBlockedNeedsVerification:
		return "blocked-needs-verification"
	case StateInFlight:
		return "in-flight"
	case StateSettled:
		return "settled"
	default:
		return "idle"
	}
}

// Snapshot is a consistent view of the orchestrator for UIs
type Snapshot struct {
	State       State
	ShowWidget  bool
	MustVerify  bool
	SiteKey     string
	HeaderName  string
	PassPresent bool
	Verified    bool
	Target      string
}

// Request is a single-target translation
type Request struct {
	Text   string
	Source string
	Target string
}

// Result of a single-target translation
type Result struct {
	Text       string
	SourceLang string
	TargetLang string
	// Identity is set when no call was made because source equals target
	Identity bool
}

// BatchRequest translates one text into several targets
type BatchRequest struct {
	Text    string
	Source  string
	Targets []string
	// OnTarget is called before each target is handled
	OnTarget func(target string)
}

// Orchestrator coordinates widget, pass store and client
type Orchestrator struct {
	client   Translator
	passes   *pass.Store
	verifier Verifier
	notifier Notifier
	recorder Recorder
	catalog  *i18n.Catalog
	metrics  *metrics.Metrics
	log      *slog.Logger
	theme    widget.Theme

	mu         sync.Mutex
	state      State
	showWidget bool
	mustVerify bool
	siteKey    string
	headerName string
	target     string
	busy       bool
	cancel     context.CancelFunc
	onChange   func(Snapshot)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }

func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

func WithCatalog(c *i18n.Catalog) Option { return func(o *Orchestrator) { o.catalog = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func WithTheme(t widget.Theme) Option { return func(o *Orchestrator) { o.theme = t } }

// WithSiteKey presets the site key and header so Configure can be skipped
func WithSiteKey(siteKey, headerName string) Option {
	return func(o *Orchestrator) {
		o.siteKey = siteKey
		if headerName != "" {
			o.headerName = headerName
		}
	}
}

// New creates an orchestrator. passes must be the store the client writes to.
func New(client Translator, passes *pass.Store, verifier Verifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:     client,
		passes:     passes,
		verifier:   verifier,
		theme:      widget.ThemeAuto,
		headerName: api.DefaultTokenHeader,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = LogNotifier{Log: o.log}
	}
	if o.catalog == nil {
		o.catalog = i18n.New("en")
	}
	return o
}

// SetNotifier replaces the notifier, e.g. once a window can show toasts
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.mu.Lock()
	o.notifier = n
	o.mu.Unlock()
}

// OnChange registers fn to receive a snapshot after every state change
func (o *Orchestrator) OnChange(fn func(Snapshot)) {
	o.mu.Lock()
	o.onChange = fn
	o.mu.Unlock()
}

// Snapshot returns the current view
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		State:       o.state,
		ShowWidget:  o.showWidget,
		MustVerify:  o.mustVerify,
		SiteKey:     o.siteKey,
		HeaderName:  o.headerName,
		PassPresent: o.passes.Present(),
		Verified:    o.verifier.IsVerified(),
		Target:      o.target,
	}
}

// Configure fetches the site key and token header. A failed fetch leaves an
// empty site key and the default header. When no pass is held and a site key
// exists the widget is shown right away.
func (o *Orchestrator) Configure(ctx context.Context) Snapshot {
	siteKey, header := "", api.DefaultTokenHeader
	resp, err := o.client.SiteKey(ctx)
	if err != nil {
		o.log.Warn("sitekey.fetch.fail", "error", err)
	} else {
		siteKey = resp.SiteKey
		if resp.HeaderName != "" {
			header = resp.HeaderName
		}
	}

	o.mu.Lock()
	o.siteKey = siteKey
	o.headerName = header
	o.mu.Unlock()
	o.log.Debug("sitekey.configured", "present", siteKey != "", "header", header)

	if siteKey != "" && !o.passes.Present() {
		o.requireVerification(ctx)
	} else {
		o.changed()
	}
	return o.Snapshot()
}

// Translate runs one user translation action
func (o *Orchestrator) Translate(ctx context.Context, req Request) (*Result, error) {
	if err := o.checkInput(req.Text); err != nil {
		return nil, err
	}

	if req.Source != languages.Auto && req.Source == req.Target {
		o.metrics.Translate(metrics.OutcomeIdentity)
		o.setState(StateSettled)
		return &Result{Text: req.Text, SourceLang: req.Source, TargetLang: req.Target, Identity: true}, nil
	}

	if err := o.checkVerification(ctx); err != nil {
		return nil, err
	}

	ctx, done, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	resp, err := o.call(ctx, req.Text, req.Source, req.Target)
	if err != nil {
		o.fail(ctx, err)
		return nil, err
	}

	o.succeed()
	return &Result{
		Text:       resp.TranslatedText,
		SourceLang: resp.SourceLang,
		TargetLang: resp.TargetLang,
	}, nil
}

// TranslateBatch translates one text into every target in order. The first
// failure stops the run; results gathered so far are returned with it.
func (o *Orchestrator) TranslateBatch(ctx context.Context, req BatchRequest) (*translation.ResultSet, error) {
	results := translation.NewResultSet()

	if err := o.checkInput(req.Text); err != nil {
		return results, err
	}
	if len(req.Targets) == 0 {
		o.setState(StateIdle)
		o.notify(i18n.ErrorGeneric, o.catalog.T(i18n.LanguageSelect), true)
		return results, ErrNoTargetsSelected
	}
	if err := o.checkVerification(ctx); err != nil {
		return results, err
	}

	ctx, done, err := o.begin(ctx)
	if err != nil {
		return results, err
	}
	defer done()

	for _, task := range batch.Plan(req.Source, req.Targets) {
		if req.OnTarget != nil {
			req.OnTarget(task.Target)
		}

		if task.Identity {
			o.metrics.Translate(metrics.OutcomeIdentity)
			results.Add(task.Target, req.Text)
			continue
		}

		if err := ctx.Err(); err != nil {
			o.fail(ctx, err)
			return results, err
		}

		o.setTarget(task.Target)
		resp, err := o.call(ctx, req.Text, req.Source, task.Target)
		if err != nil {
			o.log.Info("batch.abort", "target", task.Target, "index", task.Index, "completed", results.Len())
			o.fail(ctx, err)
			return results, err
		}
		results.Add(task.Target, resp.TranslatedText)
	}

	o.succeed()
	return results, nil
}

// Cancel aborts the action in flight, if any
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) checkInput(text string) error {
	if strings.TrimSpace(text) == "" {
		o.setState(StateBlockedNoText)
		o.notify(i18n.ErrorGeneric, o.catalog.T(i18n.ErrorEmpty), true)
		return ErrEmptyInput
	}
	if n := utf8.RuneCountInString(text); n > MaxCharacters {
		o.setState(StateIdle)
		o.notify(i18n.CharacterLimit, o.catalog.T(i18n.CharacterLimit), true)
		return fmt.Errorf("%w: %d > %d", ErrLengthExceeded, n, MaxCharacters)
	}
	return nil
}

// checkVerification blocks the action when there is nothing to prove
// verification with
func (o *Orchestrator) checkVerification(ctx context.Context) error {
	if o.passes.Present() || o.verifier.Token() != "" {
		return nil
	}
	o.metrics.Translate(metrics.OutcomeBlocked)
	o.requireVerification(ctx)
	o.setState(StateBlockedNeedsVerification)
	o.notify(i18n.TurnstileVerify, o.catalog.T(i18n.TurnstileVerify), false)
	return ErrVerificationRequired
}

// requireVerification shows the widget and renders it when not ready yet
func (o *Orchestrator) requireVerification(ctx context.Context) {
	o.mu.Lock()
	o.showWidget = true
	o.mustVerify = true
	siteKey := o.siteKey
	o.mu.Unlock()

	if siteKey != "" && !o.verifier.Ready() {
		if err := o.verifier.Render(ctx, siteKey, o.theme); err != nil {
			o.log.Warn("widget.unavailable", "error", err)
		}
	}
	o.changed()
}

func (o *Orchestrator) begin(ctx context.Context) (context.Context, func(), error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	o.busy = true
	o.cancel = cancel
	o.state = StateInFlight
	o.mu.Unlock()
	o.changed()

	return ctx, func() {
		cancel()
		o.mu.Lock()
		o.busy = false
		o.cancel = nil
		o.target = ""
		o.mu.Unlock()
		o.changed()
	}, nil
}

func (o *Orchestrator) call(ctx context.Context, text, source, target string) (*api.TranslateResponse, error) {
	o.mu.Lock()
	header := o.headerName
	o.mu.Unlock()

	resp, err := o.client.Translate(ctx, api.TranslateRequest{
		Text:       text,
		SourceLang: languages.SourceParam(source),
		TargetLang: target,
	}, api.Proof{
		HeaderName: header,
		Token:      o.verifier.Token,
	})
	if err != nil {
		return nil, err
	}

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, source, target, text, resp.TranslatedText); err != nil {
			o.log.Warn("history.record.fail", "error", err)
		}
	}
	return resp, nil
}

// succeed hides the widget when a pass now exists, otherwise it arms a
// fresh challenge so the spent token is never sent again
func (o *Orchestrator) succeed() {
	if o.passes.Present() {
		o.mu.Lock()
		o.showWidget = false
		o.mustVerify = false
		o.mu.Unlock()
	} else {
		o.verifier.Refresh()
	}
	o.setState(StateSettled)
}

func (o *Orchestrator) fail(ctx context.Context, err error) {
	if errors.Is(err, api.ErrVerificationRejected) {
		o.requireVerification(ctx)
		o.verifier.Refresh()
		o.notify(i18n.ErrorTurnstile, o.catalog.T(i18n.TurnstileVerify), true)
	} else {
		o.notify(i18n.ErrorGeneric, err.Error(), true)
	}
	o.setState(StateSettled)
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.changed()
}

func (o *Orchestrator) setTarget(target string) {
	o.mu.Lock()
	o.target = target
	o.mu.Unlock()
	o.changed()
}

func (o *Orchestrator) notify(titleKey, description string, destructive bool) {
	o.mu.Lock()
	n := o.notifier
	o.mu.Unlock()
	n.Notify(Notice{
		Title:       o.catalog.T(titleKey),
		Description: description,
		Destructive: destructive,
	})
}

func (o *Orchestrator) changed() {
	o.mu.Lock()
	fn := o.onChange
	snap := o.snapshotLocked()
	o.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
