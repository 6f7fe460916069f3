// Package anki turns recorded translations into flashcards that Anki can
// import as CSV.
package anki

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"codeberg.org/snonux/lingogate/internal/languages"
	"codeberg.org/snonux/lingogate/internal/prefs"
)

// Card represents a single Anki flashcard
type Card struct {
	Front string   // Original text
	Back  string   // Translation
	Notes string   // Language pair in words
	Tags  []string // Anki tags, no spaces allowed
}

// GeneratorOptions configures the Anki export
type GeneratorOptions struct {
	OutputPath     string // Output CSV file path
	IncludeHeaders bool   // Include CSV headers
}

// DefaultGeneratorOptions returns sensible defaults
func DefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{
		OutputPath:     "lingogate_cards.csv",
		IncludeHeaders: true,
	}
}

// Generator creates Anki-compatible import files
type Generator struct {
	options *GeneratorOptions
	cards   []Card
}

// NewGenerator creates a new Anki generator
func NewGenerator(options *GeneratorOptions) *Generator {
	if options == nil {
		options = DefaultGeneratorOptions()
	}
	return &Generator{
		options: options,
		cards:   make([]Card, 0),
	}
}

// AddCard adds a card to the collection
func (g *Generator) AddCard(card Card) {
	g.cards = append(g.cards, card)
}

// AddEntries adds one card per history entry, skipping identical pairs
func (g *Generator) AddEntries(entries []prefs.Entry) {
	seen := make(map[string]bool, len(g.cards))
	for _, c := range g.cards {
		seen[c.Front+"\x00"+c.Back] = true
	}
	for _, e := range entries {
		card := CardFromEntry(e)
		key := card.Front + "\x00" + card.Back
		if seen[key] {
			continue
		}
		seen[key] = true
		g.AddCard(card)
	}
}

// Cards returns the collected cards
func (g *Generator) Cards() []Card {
	return g.cards
}

// CardFromEntry builds a card for one recorded translation
func CardFromEntry(e prefs.Entry) Card {
	return Card{
		Front: e.Text,
		Back:  e.Result,
		Notes: fmt.Sprintf("%s → %s", languages.Name(e.Source), languages.Name(e.Target)),
		Tags:  []string{"lingogate", tag(e.Source) + "_to_" + tag(e.Target)},
	}
}

func tag(code string) string {
	return strings.ReplaceAll(code, " ", "_")
}

// GenerateCSV creates the CSV file at the configured path
func (g *Generator) GenerateCSV() error {
	file, err := os.Create(g.options.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}

	if err := g.WriteCSV(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteCSV writes all cards to w
func (g *Generator) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if g.options.IncludeHeaders {
		headers := []string{"Front", "Back", "Notes", "Tags"}
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for _, card := range g.cards {
		record := []string{
			card.Front,
			card.Back,
			card.Notes,
			strings.Join(card.Tags, " "),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write card: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Stats returns the number of cards and of distinct language pairs
func (g *Generator) Stats() (totalCards, languagePairs int) {
	pairs := make(map[string]bool)
	for _, card := range g.cards {
		if len(card.Tags) > 1 {
			pairs[card.Tags[1]] = true
		}
	}
	return len(g.cards), len(pairs)
}
