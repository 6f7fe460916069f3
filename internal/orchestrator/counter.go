package orchestrator

import (
	"unicode/utf8"

	"codeberg.org/snonux/lingogate/internal/languages"
)

// CountState classifies the input length
type CountState string

const (
	CountNormal  CountState = "normal"
	CountWarning CountState = "warning"
	CountOver    CountState = "over"
)

// Count describes the input length against the limits
type Count struct {
	Count     int
	Max       int
	SoftLimit int
	State     CountState
}

// CountStatus measures text in runes
func CountStatus(text string) Count {
	n := utf8.RuneCountInString(text)
	c := Count{Count: n, Max: MaxCharacters, SoftLimit: SoftLimit, State: CountNormal}
	switch {
	case n > MaxCharacters:
		c.State = CountOver
	case n >= SoftLimit:
		c.State = CountWarning
	}
	return c
}

// Pair is the language and text state of the two translation panes
type Pair struct {
	Source     string
	Target     string
	SourceText string
	TargetText string
}

// Swap exchanges languages and texts. It is refused while the source is
// auto-detected since there is no language to move to the target side.
func Swap(p Pair) (Pair, error) {
	if p.Source == languages.Auto {
		return p, ErrSwapAutoSource
	}
	return Pair{
		Source:     p.Target,
		Target:     p.Source,
		SourceText: p.TargetText,
		TargetText: p.SourceText,
	}, nil
}
