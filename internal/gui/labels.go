package gui

import (
	"fmt"
	"strings"

	"codeberg.org/snonux/lingogate/internal/i18n"
	"codeberg.org/snonux/lingogate/internal/languages"
	"codeberg.org/snonux/lingogate/internal/orchestrator"
	"codeberg.org/snonux/lingogate/internal/widget"
)

// languageOption is the select entry for code, e.g. "German (de)"
func languageOption(code string) string {
	return fmt.Sprintf("%s (%s)", languages.Name(code), code)
}

// optionCode extracts the code from a languageOption label
func optionCode(option string) string {
	open := strings.LastIndex(option, "(")
	if open < 0 || !strings.HasSuffix(option, ")") {
		return ""
	}
	return option[open+1 : len(option)-1]
}

func targetOptions() []string {
	list := languages.List()
	out := make([]string, 0, len(list))
	for _, l := range list {
		out = append(out, languageOption(l.Code))
	}
	return out
}

func sourceOptions() []string {
	return append([]string{languageOption(languages.Auto)}, targetOptions()...)
}

func optionsFor(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, languageOption(c))
	}
	return out
}

func codesFor(options []string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if code := optionCode(o); code != "" {
			out = append(out, code)
		}
	}
	return out
}

func counterText(c orchestrator.Count) string {
	text := fmt.Sprintf("%d / %d", c.Count, c.Max)
	switch c.State {
	case orchestrator.CountOver:
		return text + " !"
	case orchestrator.CountWarning:
		return text + " *"
	}
	return text
}

// statusText describes the orchestrator state in one line
func statusText(cat *i18n.Catalog, s orchestrator.Snapshot) string {
	switch s.State {
	case orchestrator.StateInFlight:
		if s.Target != "" {
			return cat.TData(i18n.StatusTranslatingTo, map[string]any{"Language": languages.Name(s.Target)})
		}
		return cat.T(i18n.StatusTranslating)
	case orchestrator.StateBlockedNeedsVerification:
		return cat.T(i18n.TurnstileVerify)
	case orchestrator.StateBlockedNoText:
		return cat.T(i18n.ErrorEmpty)
	default:
		return cat.T(i18n.StatusReady)
	}
}

// verificationText describes the widget state. The widget stays out of
// sight while a pass is held and nothing asks for a challenge.
func verificationText(cat *i18n.Catalog, s orchestrator.Snapshot, state widget.State) string {
	if !s.ShowWidget {
		if s.PassPresent {
			return cat.T(i18n.StatusVerified)
		}
		return ""
	}
	switch state {
	case widget.StateLoading:
		return cat.T(i18n.TurnstileVerifying)
	case widget.StateTokenAcquired:
		return cat.T(i18n.StatusVerified)
	case widget.StateTokenExpiredOrError:
		return cat.T(i18n.ErrorTurnstile)
	default:
		return cat.T(i18n.TurnstileVerify)
	}
}
