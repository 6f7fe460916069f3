// Package i18n renders user-facing messages in the configured UI language.
// Messages live in embedded active.<lang>.toml files.
package i18n

import (
	"embed"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

// Message keys
const (
	ErrorGeneric        = "error.generic"
	ErrorEmpty          = "error.empty"
	ErrorTurnstile      = "error.turnstile"
	ErrorRequest        = "error.request"
	ErrorNoTargets      = "error.noTargets"
	ErrorSwapAuto       = "error.swapAuto"
	TurnstileVerify     = "turnstile.verify"
	TurnstileVerifying  = "turnstile.verifying"
	CharacterLimit      = "character.limit"
	LanguageSelect      = "language.select"
	LanguageDetect      = "language.detect"
	LanguageSource      = "language.source"
	LanguageTarget      = "language.target"
	ButtonTranslate     = "button.translate"
	InputPlaceholder    = "input.placeholder"
	OutputPlaceholder   = "output.placeholder"
	CopiedTitle         = "toast.copied.title"
	CopiedTarget        = "toast.copied.target"
	CopyFailedTitle     = "toast.copyFailed.title"
	CopyFailedDesc      = "toast.copyFailed.desc"
	CopiedSource        = "toast.copied.source"
	PastedTitle         = "toast.pasted.title"
	PastedDesc          = "toast.pasted.desc"
	PasteFailedTitle    = "toast.pasteFailed.title"
	PasteFailedDesc     = "toast.pasteFailed.desc"
	InputClear          = "input.clear"
	ButtonPaste         = "button.paste"
	ButtonCopySource    = "button.copySource"
	ButtonSwap          = "button.swap"
	ButtonCopy          = "button.copy"
	ButtonVerify        = "button.verify"
	ButtonBatch         = "button.batch"
	TabTranslate        = "tab.translate"
	TabBatch            = "tab.batch"
	StatusReady         = "status.ready"
	StatusTranslating   = "status.translating"
	StatusTranslatingTo = "status.translatingTo"
	StatusVerified      = "status.verified"
	NoticesTitle        = "notices.title"
)

// Locales lists the bundled UI languages
var Locales = []string{"en", "fr", "de", "es"}

// Catalog looks up messages for one UI locale with fallback to the
// default locale and finally to the key itself
type Catalog struct {
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	locale    string
}

// New builds a catalog for locale. Unknown locales fall back to English.
func New(locale string) *Catalog {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, l := range Locales {
		file := "active." + l + ".toml"
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			slog.Warn("i18n.load.fail", "file", file, "error", err)
		}
	}

	if _, err := language.Parse(locale); err != nil || locale == "" {
		locale = language.English.String()
	}

	return &Catalog{
		bundle:    bundle,
		localizer: i18n.NewLocalizer(bundle, locale, language.English.String()),
		locale:    locale,
	}
}

// Locale returns the locale the catalog was built for
func (c *Catalog) Locale() string {
	return c.locale
}

// T renders the message for key
func (c *Catalog) T(key string) string {
	return c.TData(key, nil)
}

// TData renders the message for key with template data
func (c *Catalog) TData(key string, data map[string]any) string {
	if key == "" {
		return ""
	}
	if c == nil {
		return key
	}
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		slog.Debug("i18n.localize.fail", "key", key, "locale", c.locale, "error", err)
		return key
	}
	return msg
}

// Supported reports whether locale has a bundled message file
func Supported(locale string) bool {
	for _, l := range Locales {
		if l == locale {
			return true
		}
	}
	return false
}
