package models

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
)

func TestNewLister(t *testing.T) {
	lister := NewLister("test-api-key")

	if lister == nil {
		t.Fatal("NewLister returned nil")
	}

	if lister.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", lister.apiKey)
	}

	if lister.client == nil {
		t.Error("OpenAI client not initialized")
	}
}

func TestChatModels_NoAPIKey(t *testing.T) {
	lister := NewLister("")

	_, err := lister.ChatModels(context.Background())
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got: %v", err)
	}

	var buf bytes.Buffer
	if err := lister.Print(context.Background(), &buf); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Print() error = %v", err)
	}
}

func TestFilterChatModels(t *testing.T) {
	ids := []string{
		"gpt-4o-mini", "tts-1", "dall-e-3", "gpt-4o-audio-preview",
		"text-embedding-3-small", "o3-mini", "gpt-4.1", "omni-moderation-latest",
		"whisper-1", "chatgpt-4o-latest", "gpt-4o-realtime-preview",
	}
	want := []string{"chatgpt-4o-latest", "gpt-4.1", "gpt-4o-mini", "o3-mini"}
	if got := FilterChatModels(ids); !reflect.DeepEqual(got, want) {
		t.Errorf("FilterChatModels() = %v, want %v", got, want)
	}
}

func TestChatModels_Integration(t *testing.T) {
	// Skip if no API key
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping integration test: OPENAI_API_KEY not set")
	}

	var buf bytes.Buffer
	if err := NewLister(apiKey).Print(context.Background(), &buf); err != nil {
		t.Errorf("Print failed: %v", err)
	}
	t.Log(buf.String())
}
