package processor

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"codeberg.org/snonux/lingogate/internal/anki"
	"codeberg.org/snonux/lingogate/internal/cli"
	"codeberg.org/snonux/lingogate/internal/devserver"
	"codeberg.org/snonux/lingogate/internal/gui"
	"codeberg.org/snonux/lingogate/internal/languages"
	"codeberg.org/snonux/lingogate/internal/models"
	"codeberg.org/snonux/lingogate/internal/prefs"
	"codeberg.org/snonux/lingogate/internal/translation"
)

// PrintLanguages lists the supported language codes
func (p *Processor) PrintLanguages() error {
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", languages.Auto, languages.Name(languages.Auto)+" (source only)")
	for _, l := range languages.List() {
		fmt.Fprintf(tw, "%s\t%s\n", l.Code, l.Name)
	}
	return tw.Flush()
}

// ShowHistory prints recent translations, or clears them with --clear
func (p *Processor) ShowHistory(ctx context.Context) error {
	store, err := prefs.Open(p.flags.StateDir, p.log)
	if err != nil {
		return fmt.Errorf("failed to open state directory: %w", err)
	}
	defer store.Close()

	if p.flags.Clear {
		n, err := store.ClearHistory(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(p.out, "Cleared %d history entries\n", n)
		return nil
	}

	entries, err := store.Recent(ctx, p.flags.Limit)
	if err != nil {
		return err
	}
	if p.flags.Export != "" {
		return p.exportHistory(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(p.out, "No translations recorded yet")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(p.out, "%s  %s -> %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Source, e.Target)
		fmt.Fprintf(p.out, "  %s\n  %s\n", e.Text, e.Result)
	}
	return nil
}

func (p *Processor) exportHistory(entries []prefs.Entry) error {
	gen := anki.NewGenerator(&anki.GeneratorOptions{
		OutputPath:     p.flags.Export,
		IncludeHeaders: true,
	})
	gen.AddEntries(entries)
	if err := gen.GenerateCSV(); err != nil {
		return err
	}

	cards, pairs := gen.Stats()
	fmt.Fprintf(p.out, "Exported %d cards (%d language pairs) to %s\n", cards, pairs, p.flags.Export)
	return nil
}

// RunDevServer serves the translation API locally until ctx is done
func (p *Processor) RunDevServer(ctx context.Context) error {
	if p.flags.ListModels {
		return models.NewLister(cli.GetOpenAIKey()).Print(ctx, p.out)
	}

	var apiKey string
	switch p.flags.Engine {
	case translation.EngineOpenAI:
		apiKey = cli.GetOpenAIKey()
	case translation.EngineGemini:
		apiKey = cli.GetGeminiKey()
	}
	engine, err := translation.NewEngine(p.flags.Engine, apiKey, p.flags.Model)
	if err != nil {
		return err
	}
	if !p.flags.NoCache {
		engine = translation.WithCache(engine, translation.NewCache())
	}

	var verifier devserver.Verifier = devserver.AcceptAll{}
	if p.flags.Secret != "" {
		verifier = devserver.SiteVerify{Secret: p.flags.Secret}
	} else {
		p.log.Warn("devserver.verifier", "mode", "accept-all", "hint", "pass --secret to validate tokens")
	}

	srv := devserver.New(devserver.Config{
		Listen:     p.flags.Listen,
		SiteKey:    p.flags.SiteKey,
		HeaderName: p.flags.HeaderName,
		PassTTL:    p.flags.PassTTL,
		Engine:     engine,
		Verifier:   verifier,
		Logger:     p.log,
		Metrics:    p.metrics,
	})

	fmt.Fprintf(p.out, "Dev server on http://%s (engine %s, pass TTL %s)\n", p.flags.Listen, engine.Name(), p.flags.PassTTL)
	return srv.Run(ctx)
}

// RunGUIMode opens the desktop window
func (p *Processor) RunGUIMode(ctx context.Context) error {
	s, err := p.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	app := gui.New(&gui.Config{
		Orchestrator: s.orch,
		Widget:       s.adapter,
		Prefs:        s.store,
		Catalog:      s.catalog,
		Logger:       p.log,
		AutoRetry:    p.flags.AutoRetry,
		OpenVerification: func() error {
			h, ok := s.adapter.Handle()
			if !ok || s.bridge == nil {
				return errors.New("no verification page yet")
			}
			return p.opener()(s.bridge.URL(h))
		},
	})
	app.Run(ctx)
	return nil
}
