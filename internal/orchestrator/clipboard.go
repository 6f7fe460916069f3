package orchestrator

import (
	"errors"
	"strings"

	"codeberg.org/snonux/lingogate/internal/i18n"
)

var (
	// ErrClipboardUnavailable is returned when there is no clipboard to use
	ErrClipboardUnavailable = errors.New("clipboard unavailable")
	// ErrClipboardEmpty is returned when a paste finds nothing to insert
	ErrClipboardEmpty = errors.New("clipboard empty")
)

// Clipboard is the part of the system clipboard copy and paste need
type Clipboard interface {
	Content() string
	SetContent(content string)
}

// Copy puts a translation on the clipboard and tells the user how it went
func (o *Orchestrator) Copy(clip Clipboard, text string) error {
	return o.copyText(clip, text, i18n.CopiedTarget)
}

// CopySource puts source text on the clipboard
func (o *Orchestrator) CopySource(clip Clipboard, text string) error {
	return o.copyText(clip, text, i18n.CopiedSource)
}

func (o *Orchestrator) copyText(clip Clipboard, text, descKey string) error {
	if clip == nil {
		o.notify(i18n.CopyFailedTitle, o.catalog.T(i18n.CopyFailedDesc), true)
		return ErrClipboardUnavailable
	}
	clip.SetContent(text)
	o.notify(i18n.CopiedTitle, o.catalog.T(descKey), false)
	return nil
}

// Paste returns the clipboard text for the input box. Text that is
// only whitespace counts as empty.
func (o *Orchestrator) Paste(clip Clipboard) (string, error) {
	if clip == nil {
		o.notify(i18n.PasteFailedTitle, o.catalog.T(i18n.PasteFailedDesc), true)
		return "", ErrClipboardUnavailable
	}
	text := clip.Content()
	if strings.TrimSpace(text) == "" {
		o.notify(i18n.PasteFailedTitle, o.catalog.T(i18n.PasteFailedDesc), true)
		return "", ErrClipboardEmpty
	}
	o.notify(i18n.PastedTitle, o.catalog.T(i18n.PastedDesc), false)
	return text, nil
}
