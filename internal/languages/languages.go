// Package languages holds the catalogue of supported translation languages
// and the rules for migrating codes persisted by older releases.
package languages

import (
	"strings"

	"golang.org/x/text/language"
)

// Auto is the pseudo source language asking the service to detect it
const Auto = "auto"

// Language is one supported translation language
type Language struct {
	Code string
	Name string
}

// catalogue order is the order shown to users
var catalogue = []Language{
	{"ar", "Arabic"},
	{"ca", "Catalan"},
	{"zh-CN", "Chinese (Simplified)"},
	{"zh-TW", "Chinese (Traditional)"},
	{"hr", "Croatian"},
	{"cs", "Czech"},
	{"da", "Danish"},
	{"nl", "Dutch"},
	{"en-AU", "English (Australia)"},
	{"en-CA", "English (Canada)"},
	{"en-GB", "English (U.K.)"},
	{"en-US", "English (U.S.)"},
	{"fi", "Finnish"},
	{"fr-FR", "French"},
	{"fr-CA", "French (Canada)"},
	{"de", "German"},
	{"el", "Greek"},
	{"he", "Hebrew"},
	{"hi", "Hindi"},
	{"hu", "Hungarian"},
	{"id", "Indonesian"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"ms", "Malay"},
	{"no", "Norwegian"},
	{"pl", "Polish"},
	{"pt-PT", "Portuguese (Portugal)"},
	{"pt-BR", "Portuguese (Brazil)"},
	{"ro", "Romanian"},
	{"ru", "Russian"},
	{"sk", "Slovak"},
	{"es-MX", "Spanish (Mexico)"},
	{"es-ES", "Spanish (Spain)"},
	{"sv", "Swedish"},
	{"th", "Thai"},
	{"tr", "Turkish"},
	{"uk", "Ukrainian"},
	{"vi", "Vietnamese"},
}

var byCode = func() map[string]string {
	m := make(map[string]string, len(catalogue))
	for _, l := range catalogue {
		m[l.Code] = l.Name
	}
	return m
}()

// legacy maps generic codes from older releases to current ones. Codes
// missing here are kept as they are.
var legacy = map[string]string{
	"en":    "en-US",
	"en_us": "en-US",
	"zh":    "zh-CN",
	"es":    "es-ES",
	"pt":    "pt-PT",
	"fr":    "fr-FR",
	"nb-NO": "no",
	"de-DE": "de",
	"it-IT": "it",
	"ja-JP": "ja",
	"ko-KR": "ko",
	"ru-RU": "ru",
	"sv-SE": "sv",
	"tr-TR": "tr",
	"uk-UA": "uk",
	"vi-VN": "vi",
	"pl-PL": "pl",
	"ro-RO": "ro",
	"sk-SK": "sk",
	"fi-FI": "fi",
	"el-GR": "el",
	"he-IL": "he",
	"hi-IN": "hi",
	"hu-HU": "hu",
	"id-ID": "id",
	"ms-MY": "ms",
	"nl-NL": "nl",
	"da-DK": "da",
	"cs-CZ": "cs",
	"hr-HR": "hr",
	"ca-ES": "ca",
	"ar-SA": "ar",
}

// IsValid reports whether code is a supported target language
func IsValid(code string) bool {
	_, ok := byCode[code]
	return ok
}

// IsValidSource also accepts Auto
func IsValidSource(code string) bool {
	return code == Auto || IsValid(code)
}

// Name returns the display name for code, or code itself when unknown
func Name(code string) string {
	if code == Auto {
		return "Auto-detect"
	}
	if name, ok := byCode[code]; ok {
		return name
	}
	return code
}

// List returns the supported languages in display order
func List() []Language {
	out := make([]Language, len(catalogue))
	copy(out, catalogue)
	return out
}

// Codes returns the supported codes in display order
func Codes() []string {
	out := make([]string, len(catalogue))
	for i, l := range catalogue {
		out[i] = l.Code
	}
	return out
}

// Migrate maps a legacy code to its current form
func Migrate(code string) string {
	if to, ok := legacy[code]; ok {
		return to
	}
	return code
}

// Normalize canonicalises user input such as "EN_us" or "pt-br" and then
// applies Migrate. The result is not guaranteed to be valid.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, Auto) {
		return strings.ToLower(code)
	}
	if migrated := Migrate(code); IsValid(migrated) {
		return migrated
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	return Migrate(tag.String())
}

// SourceParam converts a source selection to the wire form where auto
// detection is sent as null
func SourceParam(code string) *string {
	if code == "" || code == Auto {
		return nil
	}
	return &code
}
