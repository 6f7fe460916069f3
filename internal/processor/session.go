package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/snonux/lingogate/internal/api"
	"codeberg.org/snonux/lingogate/internal/cli"
	"codeberg.org/snonux/lingogate/internal/i18n"
	"codeberg.org/snonux/lingogate/internal/orchestrator"
	"codeberg.org/snonux/lingogate/internal/pass"
	"codeberg.org/snonux/lingogate/internal/prefs"
	"codeberg.org/snonux/lingogate/internal/widget"
	"codeberg.org/snonux/lingogate/internal/widget/browser"
)

const (
	// maxAttempts bounds how often one action is retried after verification
	maxAttempts = 3

	verifyTimeout = 5 * time.Minute
	container     = "lingogate"
)

// session is everything one command needs to talk to the service
type session struct {
	p       *Processor
	store   *prefs.Store
	passes  *pass.Store
	client  *api.Client
	bridge  *browser.Bridge
	adapter *widget.Adapter
	orch    *orchestrator.Orchestrator
	catalog *i18n.Catalog

	tokenSpent bool
}

// tokenRuntime answers every render with a token the user already holds
type tokenRuntime struct {
	token string
}

func (r tokenRuntime) Render(_ string, opts widget.Options) (widget.Handle, error) {
	if opts.OnSuccess != nil {
		opts.OnSuccess(r.token)
	}
	return widget.Handle("token"), nil
}

func (r tokenRuntime) Reset(widget.Handle) {}

func (p *Processor) openSession(ctx context.Context) (*session, error) {
	store, err := prefs.Open(p.flags.StateDir, p.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open state directory: %w", err)
	}

	locale := p.flags.Locale
	if locale == "" {
		locale = store.UILanguage(ctx, "en")
	} else if i18n.Supported(locale) {
		store.SetUILanguage(ctx, locale)
	}

	s := &session{
		p:       p,
		store:   store,
		passes:  pass.NewStore(),
		catalog: i18n.New(locale),
	}
	s.client = api.NewClient(api.Config{
		BaseURL: cli.GetAPIBase(p.flags.APIBase),
		Timeout: p.flags.Timeout,
		Logger:  p.log,
		Metrics: p.metrics,
	}, s.passes)

	var load widget.LoadFunc
	if p.flags.Token != "" {
		rt := tokenRuntime{token: p.flags.Token}
		load = func(context.Context) (widget.Global, error) { return rt, nil }
	} else {
		s.bridge = browser.New(p.flags.WidgetListen,
			browser.WithOpener(p.opener()),
			browser.WithLogger(p.log),
			browser.WithMetrics(p.metrics),
		)
		load = s.bridge.Load
	}
	s.adapter = widget.NewAdapter(widget.NewScriptLoader(load), container,
		widget.WithLogger(p.log),
		widget.WithMetrics(p.metrics),
	)

	opts := []orchestrator.Option{
		orchestrator.WithNotifier(p.notifier()),
		orchestrator.WithCatalog(s.catalog),
		orchestrator.WithMetrics(p.metrics),
		orchestrator.WithLogger(p.log),
		orchestrator.WithTheme(widget.ParseTheme(p.flags.Theme)),
	}
	if !p.flags.NoHistory {
		opts = append(opts, orchestrator.WithRecorder(store))
	}
	s.orch = orchestrator.New(s.client, s.passes, s.adapter, opts...)
	return s, nil
}

func (s *session) close() {
	if s.bridge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.bridge.Close(ctx); err != nil {
			s.p.log.Warn("bridge.close.fail", "err", err)
		}
	}
	if err := s.store.Close(); err != nil {
		s.p.log.Warn("prefs.close.fail", "err", err)
	}
}

// awaitVerification turns a verification failure into a solved challenge.
// Any other error is returned unchanged.
func (s *session) awaitVerification(ctx context.Context, cause error) error {
	if !errors.Is(cause, orchestrator.ErrVerificationRequired) && !errors.Is(cause, api.ErrVerificationRejected) {
		return cause
	}
	if errors.Is(cause, api.ErrVerificationRejected) {
		fmt.Fprintf(s.p.errOut, "%s: %v\n", s.catalog.T(i18n.ErrorTurnstile), cause)
	}

	if s.p.flags.Token != "" {
		if s.tokenSpent {
			return fmt.Errorf("the token given with --token was used up, solve a new challenge: %w", cause)
		}
		s.tokenSpent = true
	}

	// The site key is fetched lazily so input errors never touch the network
	if s.orch.Snapshot().SiteKey == "" {
		if snap := s.orch.Configure(ctx); snap.SiteKey == "" {
			return fmt.Errorf("the service did not provide a site key: %w", cause)
		}
	}
	if !s.adapter.Ready() {
		return fmt.Errorf("verification widget unavailable: %w", cause)
	}

	if !s.adapter.IsVerified() {
		fmt.Fprintln(s.p.errOut, s.catalog.T(i18n.TurnstileVerifying))
	}
	waitCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	if _, err := s.adapter.WaitVerified(waitCtx); err != nil {
		return fmt.Errorf("waiting for verification: %w", err)
	}
	return nil
}
