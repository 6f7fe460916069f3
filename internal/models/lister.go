package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Lister handles listing available OpenAI models
type Lister struct {
	apiKey string
	client *openai.Client
}

// NewLister creates a new model lister
func NewLister(apiKey string) *Lister {
	return &Lister{
		apiKey: apiKey,
		client: openai.NewClient(apiKey),
	}
}

// ErrNoAPIKey is returned when no OpenAI key is configured
var ErrNoAPIKey = errors.New("OpenAI API key not found. Set OPENAI_API_KEY environment variable or configure in .lingogate.yaml")

// ChatModels returns the sorted IDs of models usable for translation
func (l *Lister) ChatModels(ctx context.Context) ([]string, error) {
	if l.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	models, err := l.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var ids []string
	for _, model := range models.Models {
		ids = append(ids, model.ID)
	}
	return FilterChatModels(ids), nil
}

// FilterChatModels keeps chat capable models and drops audio, image,
// embedding and moderation ones
func FilterChatModels(ids []string) []string {
	var chat []string
	for _, id := range ids {
		if !strings.Contains(id, "gpt") && !strings.Contains(id, "chat") && !strings.HasPrefix(id, "o") {
			continue
		}
		if strings.Contains(id, "tts") || strings.Contains(id, "audio") ||
			strings.Contains(id, "realtime") || strings.Contains(id, "transcribe") ||
			strings.Contains(id, "image") || strings.Contains(id, "embedding") ||
			strings.Contains(id, "moderation") || strings.Contains(id, "search") {
			continue
		}
		chat = append(chat, id)
	}
	sort.Strings(chat)
	return chat
}

// Print writes the chat models to w
func (l *Lister) Print(ctx context.Context, w io.Writer) error {
	chat, err := l.ChatModels(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Chat models usable with --engine openai --model NAME:")
	if len(chat) == 0 {
		fmt.Fprintln(w, "  No chat models found")
		return nil
	}
	for _, model := range chat {
		fmt.Fprintf(w, "  %s\n", model)
	}
	return nil
}
