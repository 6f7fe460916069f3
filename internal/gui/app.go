package gui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	fynetooltip "github.com/dweymouth/fyne-tooltip"
	ttwidget "github.com/dweymouth/fyne-tooltip/widget"

	"codeberg.org/snonux/lingogate/internal"
	"codeberg.org/snonux/lingogate/internal/api"
	"codeberg.org/snonux/lingogate/internal/i18n"
	"codeberg.org/snonux/lingogate/internal/languages"
	"codeberg.org/snonux/lingogate/internal/orchestrator"
	"codeberg.org/snonux/lingogate/internal/prefs"
	lgwidget "codeberg.org/snonux/lingogate/internal/widget"
)

// Default selection for a fresh state directory
const (
	defaultSource = languages.Auto
	defaultTarget = "en-US"
)

// Config holds what the window needs from the session
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Widget       *lgwidget.Adapter
	Prefs        *prefs.Store
	Catalog      *i18n.Catalog
	Logger       *slog.Logger

	// OpenVerification shows the challenge page again
	OpenVerification func() error

	// AutoRetry repeats an action blocked on verification once the
	// widget reports a token
	AutoRetry bool
}

// Application represents the main GUI application
type Application struct {
	// Fyne components
	app    fyne.App
	window fyne.Window

	config *Config
	orch   *orchestrator.Orchestrator
	cat    *i18n.Catalog
	log    *slog.Logger

	// Translate tab
	sourceSelect *widget.Select
	targetSelect *widget.Select
	input        *CustomMultiLineEntry
	output       *widget.Label
	counterLabel *widget.Label
	translateBtn *ttwidget.Button
	swapBtn      *ttwidget.Button
	copyBtn      *ttwidget.Button
	pasteBtn     *ttwidget.Button
	clearBtn     *ttwidget.Button

	// Batch tab
	batchSource  *widget.Select
	batchTargets *widget.CheckGroup
	batchInput   *CustomMultiLineEntry
	batchResults *widget.Label
	batchBtn     *ttwidget.Button
	batchCopyBtn *ttwidget.Button

	// Shared
	statusLabel *widget.Label
	verifyLabel *widget.Label
	verifyBtn   *ttwidget.Button
	notices     *NoticeLog

	// Background processing
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	outputText string
	snapshot   orchestrator.Snapshot
	retry      retrySlot

	// loading suppresses saves while stored selections are applied
	loading bool
}

// New creates the window and wires it to the orchestrator
func New(config *Config) *Application {
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}

	a := &Application{
		app:    app.NewWithID("org.codeberg.snonux.lingogate"),
		config: config,
		orch:   config.Orchestrator,
		cat:    config.Catalog,
		log:    log,
		ctx:    context.Background(),
		cancel: func() {},
		retry:  retrySlot{auto: config.AutoRetry},
	}

	a.setupUI()
	a.loadPreferences()

	a.orch.OnChange(func(s orchestrator.Snapshot) {
		a.mu.Lock()
		a.snapshot = s
		a.mu.Unlock()
		fyne.Do(a.refreshStatus)
	})
	a.orch.SetNotifier(orchestrator.NotifierFunc(a.notices.Add))
	if config.Widget != nil {
		config.Widget.OnChange(a.onWidgetChange)
	}
	return a
}

// setupUI creates the main user interface
func (a *Application) setupUI() {
	a.window = a.app.NewWindow(fmt.Sprintf("Lingogate v%s", internal.Version))
	a.window.Resize(fyne.NewSize(900, 640))

	a.statusLabel = widget.NewLabel(a.cat.T(i18n.StatusReady))
	a.verifyLabel = widget.NewLabel("")
	a.verifyBtn = ttwidget.NewButtonWithIcon("", theme.VisibilityIcon(), a.onVerify)
	a.verifyBtn.Hide()
	a.notices = NewNoticeLog(a.cat.T(i18n.NoticesTitle))

	tabs := container.NewAppTabs(
		container.NewTabItem(a.cat.T(i18n.TabTranslate), a.translateTab()),
		container.NewTabItem(a.cat.T(i18n.TabBatch), a.batchTab()),
	)

	statusBar := container.NewBorder(
		nil, nil,
		a.statusLabel,
		container.NewHBox(a.verifyLabel, a.verifyBtn),
	)

	content := container.NewBorder(
		nil,
		container.NewVBox(widget.NewSeparator(), statusBar, a.notices),
		nil, nil,
		tabs,
	)
	a.window.SetContent(fynetooltip.AddWindowToolTipLayer(content, a.window.Canvas()))

	// Tooltips need the tooltip layer to exist first
	a.translateBtn.SetToolTip(a.cat.T(i18n.ButtonTranslate) + " (Ctrl+Enter)")
	a.swapBtn.SetToolTip(a.cat.T(i18n.ButtonSwap))
	a.copyBtn.SetToolTip(a.cat.T(i18n.ButtonCopy))
	a.pasteBtn.SetToolTip(a.cat.T(i18n.ButtonPaste))
	a.clearBtn.SetToolTip(a.cat.T(i18n.InputClear))
	a.batchBtn.SetToolTip(a.cat.T(i18n.ButtonBatch) + " (Ctrl+Enter)")
	a.batchCopyBtn.SetToolTip(a.cat.T(i18n.ButtonCopySource))
	a.verifyBtn.SetToolTip(a.cat.T(i18n.ButtonVerify))
}

func (a *Application) translateTab() fyne.CanvasObject {
	a.sourceSelect = widget.NewSelect(sourceOptions(), func(string) { a.saveLanguages() })
	a.sourceSelect.PlaceHolder = a.cat.T(i18n.LanguageSource)
	a.targetSelect = widget.NewSelect(targetOptions(), func(string) { a.saveLanguages() })
	a.targetSelect.PlaceHolder = a.cat.T(i18n.LanguageTarget)

	a.input = NewCustomMultiLineEntry()
	a.input.SetPlaceHolder(a.cat.T(i18n.InputPlaceholder))
	a.input.SetOnSubmit(a.onTranslate)
	a.input.SetOnEscape(a.orch.Cancel)
	a.input.OnChanged = func(text string) {
		a.counterLabel.SetText(counterText(orchestrator.CountStatus(text)))
	}

	a.output = widget.NewLabel(a.cat.T(i18n.OutputPlaceholder))
	a.output.Wrapping = fyne.TextWrapWord
	a.output.Selectable = true

	a.counterLabel = widget.NewLabel(counterText(orchestrator.CountStatus("")))

	a.translateBtn = ttwidget.NewButtonWithIcon(a.cat.T(i18n.ButtonTranslate), theme.ConfirmIcon(), a.onTranslate)
	a.translateBtn.Importance = widget.HighImportance
	a.swapBtn = ttwidget.NewButtonWithIcon("", theme.ViewRefreshIcon(), a.onSwap)
	a.copyBtn = ttwidget.NewButtonWithIcon("", theme.ContentCopyIcon(), a.onCopy)
	a.pasteBtn = ttwidget.NewButtonWithIcon("", theme.ContentPasteIcon(), a.onPaste)
	a.clearBtn = ttwidget.NewButtonWithIcon("", theme.ContentClearIcon(), a.onClear)

	languageRow := container.New(layout.NewGridLayout(2),
		container.NewBorder(nil, nil, nil, a.swapBtn, a.sourceSelect),
		a.targetSelect,
	)

	inputPane := container.NewBorder(
		nil,
		container.NewHBox(a.counterLabel, layout.NewSpacer(), a.pasteBtn, a.clearBtn, a.translateBtn),
		nil, nil,
		a.input,
	)
	outputPane := container.NewBorder(
		nil,
		container.NewHBox(layout.NewSpacer(), a.copyBtn),
		nil, nil,
		container.NewVScroll(a.output),
	)

	panes := container.NewHSplit(inputPane, outputPane)
	panes.SetOffset(0.5)

	return container.NewBorder(languageRow, nil, nil, nil, panes)
}

func (a *Application) batchTab() fyne.CanvasObject {
	a.batchSource = widget.NewSelect(sourceOptions(), func(string) { a.saveBatch() })
	a.batchSource.PlaceHolder = a.cat.T(i18n.LanguageSource)

	a.batchTargets = widget.NewCheckGroup(targetOptions(), func([]string) { a.saveBatch() })

	a.batchInput = NewCustomMultiLineEntry()
	a.batchInput.SetPlaceHolder(a.cat.T(i18n.InputPlaceholder))
	a.batchInput.SetOnSubmit(a.onBatch)
	a.batchInput.SetOnEscape(a.orch.Cancel)

	a.batchResults = widget.NewLabel(a.cat.T(i18n.OutputPlaceholder))
	a.batchResults.Wrapping = fyne.TextWrapWord
	a.batchResults.Selectable = true

	a.batchBtn = ttwidget.NewButtonWithIcon(a.cat.T(i18n.ButtonBatch), theme.ConfirmIcon(), a.onBatch)
	a.batchBtn.Importance = widget.HighImportance
	a.batchCopyBtn = ttwidget.NewButtonWithIcon("", theme.ContentCopyIcon(), a.onBatchCopySource)

	targetScroll := container.NewVScroll(a.batchTargets)
	targetScroll.SetMinSize(fyne.NewSize(240, 0))

	left := container.NewBorder(
		container.NewVBox(a.batchSource, widget.NewLabel(a.cat.T(i18n.LanguageTarget))),
		nil, nil, nil,
		targetScroll,
	)

	work := container.NewVSplit(
		container.NewBorder(nil, container.NewHBox(layout.NewSpacer(), a.batchCopyBtn, a.batchBtn), nil, nil, a.batchInput),
		container.NewVScroll(a.batchResults),
	)
	work.SetOffset(0.4)

	return container.NewBorder(nil, nil, left, nil, work)
}

// Run shows the window until it is closed or ctx is done
func (a *Application) Run(ctx context.Context) {
	parent := ctx
	a.ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	a.window.SetOnClosed(func() {
		a.orch.Cancel()
		a.cancel()
	})

	go func() {
		select {
		case <-parent.Done():
			fyne.Do(a.app.Quit)
		case <-a.ctx.Done():
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		snap := a.orch.Configure(a.ctx)
		a.log.Debug("gui.configured", "siteKey", snap.SiteKey != "", "pass", snap.PassPresent)
	}()

	a.window.ShowAndRun()

	a.cancel()
	a.wg.Wait()
}

func (a *Application) loadPreferences() {
	ctx := context.Background()
	a.loading = true
	defer func() { a.loading = false }()

	if a.config.Prefs == nil {
		a.sourceSelect.SetSelected(languageOption(defaultSource))
		a.targetSelect.SetSelected(languageOption(defaultTarget))
		a.batchSource.SetSelected(languageOption(defaultSource))
		return
	}

	l := a.config.Prefs.LoadLanguages(ctx, prefs.Languages{Source: defaultSource, Target: defaultTarget})
	a.sourceSelect.SetSelected(languageOption(l.Source))
	a.targetSelect.SetSelected(languageOption(l.Target))

	b := a.config.Prefs.LoadBatch(ctx, prefs.BatchSelection{Source: defaultSource})
	a.batchSource.SetSelected(languageOption(b.Source))
	a.batchTargets.SetSelected(optionsFor(uniqueCodes(b.Targets)))
}

func (a *Application) saveLanguages() {
	if a.loading || a.config.Prefs == nil || a.sourceSelect == nil || a.targetSelect == nil {
		return
	}
	a.config.Prefs.SaveLanguages(context.Background(), prefs.Languages{
		Source: optionCode(a.sourceSelect.Selected),
		Target: optionCode(a.targetSelect.Selected),
	})
}

func (a *Application) saveBatch() {
	if a.loading || a.config.Prefs == nil || a.batchSource == nil || a.batchTargets == nil {
		return
	}
	a.config.Prefs.SaveBatch(context.Background(), prefs.BatchSelection{
		Source:  optionCode(a.batchSource.Selected),
		Targets: codesFor(a.batchTargets.Selected),
	})
}

func (a *Application) onTranslate() {
	req := orchestrator.Request{
		Text:   a.input.Text,
		Source: optionCode(a.sourceSelect.Selected),
		Target: optionCode(a.targetSelect.Selected),
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res, err := a.orch.Translate(a.ctx, req)
		if err != nil {
			a.handleError("translate", err, a.onTranslate)
			return
		}
		a.mu.Lock()
		a.outputText = res.Text
		a.mu.Unlock()
		fyne.Do(func() { a.output.SetText(res.Text) })
	}()
}

func (a *Application) onBatch() {
	req := orchestrator.BatchRequest{
		Text:    a.batchInput.Text,
		Source:  optionCode(a.batchSource.Selected),
		Targets: codesFor(a.batchTargets.Selected),
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		results, err := a.orch.TranslateBatch(a.ctx, req)

		var b strings.Builder
		for _, r := range results.All() {
			fmt.Fprintf(&b, "%s\n%s\n\n", languageOption(r.Target), r.Text)
		}
		if results.Len() > 0 || err == nil {
			text := strings.TrimSpace(b.String())
			fyne.Do(func() { a.batchResults.SetText(text) })
		}
		if err != nil {
			a.handleError("batch", err, a.onBatch)
		}
	}()
}

// handleError logs err. With auto retry on, an action blocked on
// verification runs again once the widget reports a token. Otherwise the
// user repeats it.
func (a *Application) handleError(action string, err error, retry func()) {
	a.log.Debug("gui.action.fail", "action", action, "error", err)

	switch {
	case errors.Is(err, orchestrator.ErrVerificationRequired), errors.Is(err, api.ErrVerificationRejected):
		if a.retry.park(retry) {
			a.log.Debug("gui.action.parked", "action", action)
		}
	case errors.Is(err, orchestrator.ErrBusy):
		fyne.Do(func() { a.statusLabel.SetText(err.Error()) })
	}
}

func (a *Application) onWidgetChange(state lgwidget.State) {
	if retry := a.retry.take(state); retry != nil {
		fyne.Do(retry)
	}
	fyne.Do(a.refreshStatus)
}

func (a *Application) onSwap() {
	a.mu.Lock()
	current := orchestrator.Pair{
		Source:     optionCode(a.sourceSelect.Selected),
		Target:     optionCode(a.targetSelect.Selected),
		SourceText: a.input.Text,
		TargetText: a.outputText,
	}
	a.mu.Unlock()

	swapped, err := orchestrator.Swap(current)
	if err != nil {
		a.notices.Add(orchestrator.Notice{
			Title:       a.cat.T(i18n.ErrorGeneric),
			Description: a.cat.T(i18n.ErrorSwapAuto),
			Destructive: true,
		})
		return
	}

	a.mu.Lock()
	a.outputText = swapped.TargetText
	a.mu.Unlock()

	a.sourceSelect.SetSelected(languageOption(swapped.Source))
	a.targetSelect.SetSelected(languageOption(swapped.Target))
	a.input.SetText(swapped.SourceText)
	if swapped.TargetText == "" {
		a.output.SetText(a.cat.T(i18n.OutputPlaceholder))
	} else {
		a.output.SetText(swapped.TargetText)
	}
}

func (a *Application) onCopy() {
	a.mu.Lock()
	text := a.outputText
	a.mu.Unlock()
	if text == "" {
		return
	}

	if err := a.orch.Copy(a.clipboard(), text); err != nil {
		a.log.Warn("gui.copy.fail", "error", err)
	}
}

func (a *Application) onPaste() {
	text, err := a.orch.Paste(a.clipboard())
	if err != nil {
		a.log.Debug("gui.paste.fail", "error", err)
		return
	}
	a.input.SetText(text)
	a.window.Canvas().Focus(a.input)
}

func (a *Application) onClear() {
	a.mu.Lock()
	a.outputText = ""
	a.mu.Unlock()

	a.input.SetText("")
	a.output.SetText(a.cat.T(i18n.OutputPlaceholder))
	a.window.Canvas().Focus(a.input)
}

func (a *Application) onBatchCopySource() {
	text := a.batchInput.Text
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := a.orch.CopySource(a.clipboard(), text); err != nil {
		a.log.Warn("gui.copy.fail", "error", err)
	}
}

// clipboard keeps a nil interface when the window has no clipboard
func (a *Application) clipboard() orchestrator.Clipboard {
	if c := a.window.Clipboard(); c != nil {
		return c
	}
	return nil
}

func (a *Application) onVerify() {
	if a.config.OpenVerification == nil {
		return
	}
	if err := a.config.OpenVerification(); err != nil {
		a.notices.Add(orchestrator.Notice{
			Title:       a.cat.T(i18n.ErrorTurnstile),
			Description: err.Error(),
			Destructive: true,
		})
	}
}

// refreshStatus must run on the fyne goroutine
func (a *Application) refreshStatus() {
	a.mu.Lock()
	snap := a.snapshot
	a.mu.Unlock()

	state := lgwidget.StateIdle
	if a.config.Widget != nil {
		state = a.config.Widget.State()
	}

	a.statusLabel.SetText(statusText(a.cat, snap))
	a.verifyLabel.SetText(verificationText(a.cat, snap, state))
	if snap.ShowWidget {
		a.verifyBtn.Show()
	} else {
		a.verifyBtn.Hide()
	}

	if snap.State == orchestrator.StateInFlight {
		a.translateBtn.Disable()
		a.batchBtn.Disable()
		a.swapBtn.Disable()
	} else {
		a.translateBtn.Enable()
		a.batchBtn.Enable()
		a.swapBtn.Enable()
	}
}

// uniqueCodes drops repeated codes, a check group holds each option once
func uniqueCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
