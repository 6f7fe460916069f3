package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"codeberg.org/snonux/lingogate/internal/languages"
)

// Engine translates text. An empty source means detect the language.
type Engine interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// ErrNoAPIKey is returned by remote engines created without credentials
var ErrNoAPIKey = errors.New("API key not found")

// Engine names
const (
	EngineEcho   = "echo"
	EngineOpenAI = "openai"
	EngineGemini = "gemini"
)

// NewEngine creates the named engine. apiKey is ignored by echo.
func NewEngine(name, apiKey, model string) (Engine, error) {
	switch name {
	case EngineEcho, "":
		return EchoEngine{}, nil
	case EngineOpenAI:
		return NewOpenAIEngine(apiKey, model), nil
	case EngineGemini:
		return NewGeminiEngine(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown engine: %s", name)
	}
}

// EchoEngine returns the text tagged with the target language. It needs no
// credentials and is meant for local testing.
type EchoEngine struct{}

func (EchoEngine) Name() string { return EngineEcho }

func (EchoEngine) Translate(_ context.Context, text, _, target string) (string, error) {
	return fmt.Sprintf("[%s] %s", target, text), nil
}

func prompt(text, source, target string) string {
	from := "the detected source language"
	if source != "" && source != languages.Auto {
		from = fmt.Sprintf("%s (%s)", languages.Name(source), source)
	}
	return fmt.Sprintf("Translate the following text from %s to %s (%s). Respond with only the translation, nothing else.\n\n%s",
		from, languages.Name(target), target, text)
}

// OpenAIEngine translates with an OpenAI chat model
type OpenAIEngine struct {
	apiKey string
	model  string
	client *openai.Client
}

// NewOpenAIEngine creates an OpenAI engine. An empty model uses gpt-4o-mini.
func NewOpenAIEngine(apiKey, model string) *OpenAIEngine {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIEngine{
		apiKey: apiKey,
		model:  model,
		client: openai.NewClient(apiKey),
	}
}

func (e *OpenAIEngine) Name() string { return EngineOpenAI }

func (e *OpenAIEngine) Translate(ctx context.Context, text, source, target string) (string, error) {
	if e.apiKey == "" {
		return "", fmt.Errorf("OpenAI %w", ErrNoAPIKey)
	}

	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt(text, source, target),
			},
		},
		Temperature: 0.3,
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no translation returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GeminiEngine translates with a Gemini model
type GeminiEngine struct {
	apiKey string
	model  string
}

// NewGeminiEngine creates a Gemini engine. An empty model uses gemini-2.0-flash.
func NewGeminiEngine(apiKey, model string) *GeminiEngine {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiEngine{apiKey: apiKey, model: model}
}

func (e *GeminiEngine) Name() string { return EngineGemini }

func (e *GeminiEngine) Translate(ctx context.Context, text, source, target string) (string, error) {
	if e.apiKey == "" {
		return "", fmt.Errorf("Gemini %w", ErrNoAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}

	result, err := client.Models.GenerateContent(ctx, e.model, genai.Text(prompt(text, source, target)), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	out := strings.TrimSpace(result.Text())
	if out == "" {
		return "", fmt.Errorf("no translation returned")
	}
	return out, nil
}
