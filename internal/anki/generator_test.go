package anki

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/snonux/lingogate/internal/prefs"
)

func TestDefaultGeneratorOptions(t *testing.T) {
	opts := DefaultGeneratorOptions()

	if opts.OutputPath != "lingogate_cards.csv" {
		t.Errorf("Expected output path 'lingogate_cards.csv', got '%s'", opts.OutputPath)
	}

	if !opts.IncludeHeaders {
		t.Error("Expected IncludeHeaders to be true")
	}
}

func TestNewGenerator(t *testing.T) {
	gen := NewGenerator(nil)
	if gen == nil {
		t.Fatal("NewGenerator returned nil")
	}
	if gen.options == nil {
		t.Error("Generator options should not be nil")
	}

	gen = NewGenerator(&GeneratorOptions{OutputPath: "custom.csv"})
	if gen.options.OutputPath != "custom.csv" {
		t.Errorf("Expected custom output path, got '%s'", gen.options.OutputPath)
	}
}

func TestCardFromEntry(t *testing.T) {
	card := CardFromEntry(prefs.Entry{
		CreatedAt: time.Now(),
		Source:    "de",
		Target:    "en-US",
		Text:      "Guten Morgen",
		Result:    "Good morning",
	})

	if card.Front != "Guten Morgen" || card.Back != "Good morning" {
		t.Errorf("card = %+v", card)
	}
	if card.Notes != "German → English (U.S.)" {
		t.Errorf("Notes = %q", card.Notes)
	}
	if strings.Join(card.Tags, " ") != "lingogate de_to_en-US" {
		t.Errorf("Tags = %v", card.Tags)
	}
}

func TestAddEntries(t *testing.T) {
	gen := NewGenerator(nil)
	gen.AddCard(Card{Front: "Hallo", Back: "Hello"})

	gen.AddEntries([]prefs.Entry{
		{Source: "de", Target: "en-US", Text: "Hallo", Result: "Hello"},
		{Source: "de", Target: "fr", Text: "Hallo", Result: "Bonjour"},
		{Source: "de", Target: "fr", Text: "Hallo", Result: "Bonjour"},
	})

	cards := gen.Cards()
	if len(cards) != 2 {
		t.Fatalf("Expected 2 cards, got %d: %+v", len(cards), cards)
	}
	if cards[1].Back != "Bonjour" {
		t.Errorf("second card = %+v", cards[1])
	}
}

func TestGenerateCSV(t *testing.T) {
	tempDir := t.TempDir()
	outputPath := filepath.Join(tempDir, "test.csv")

	gen := NewGenerator(&GeneratorOptions{
		OutputPath:     outputPath,
		IncludeHeaders: true,
	})
	gen.AddEntries([]prefs.Entry{
		{Source: "auto", Target: "de", Text: "apple, pie", Result: "Apfelkuchen"},
		{Source: "fr", Target: "en-GB", Text: "chat", Result: "cat"},
	})

	if err := gen.GenerateCSV(); err != nil {
		t.Fatalf("GenerateCSV() error = %v", err)
	}

	file, err := os.Open(outputPath)
	if err != nil {
		t.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(records))
	}

	expectedHeaders := []string{"Front", "Back", "Notes", "Tags"}
	for i, header := range expectedHeaders {
		if records[0][i] != header {
			t.Errorf("Expected header '%s' at position %d, got '%s'", header, i, records[0][i])
		}
	}

	if records[1][0] != "apple, pie" {
		t.Errorf("Expected front 'apple, pie', got '%s'", records[1][0])
	}
	if records[1][1] != "Apfelkuchen" {
		t.Errorf("Expected back 'Apfelkuchen', got '%s'", records[1][1])
	}
	if records[1][3] != "lingogate auto_to_de" {
		t.Errorf("Expected tags 'lingogate auto_to_de', got '%s'", records[1][3])
	}
}

func TestWriteCSVWithoutHeaders(t *testing.T) {
	gen := NewGenerator(&GeneratorOptions{IncludeHeaders: false})
	gen.AddCard(Card{Front: "a", Back: "b"})

	var buf bytes.Buffer
	if err := gen.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if got := buf.String(); got != "a,b,,\n" {
		t.Errorf("WriteCSV() = %q", got)
	}
}

func TestGenerateCSV_BadPath(t *testing.T) {
	gen := NewGenerator(&GeneratorOptions{
		OutputPath: filepath.Join(t.TempDir(), "missing", "out.csv"),
	})
	if err := gen.GenerateCSV(); err == nil {
		t.Error("Expected an error for a missing parent directory")
	}
}

func TestStats(t *testing.T) {
	gen := NewGenerator(nil)
	gen.AddEntries([]prefs.Entry{
		{Source: "de", Target: "en-US", Text: "eins", Result: "one"},
		{Source: "de", Target: "en-US", Text: "zwei", Result: "two"},
		{Source: "de", Target: "fr", Text: "drei", Result: "trois"},
	})

	total, pairs := gen.Stats()
	if total != 3 {
		t.Errorf("Expected 3 cards, got %d", total)
	}
	if pairs != 2 {
		t.Errorf("Expected 2 language pairs, got %d", pairs)
	}
}
