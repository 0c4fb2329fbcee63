package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// SystemPersona is the fixed preamble for every patient-facing completion.
const SystemPersona = "You are a helpful, empathetic medical assistant. Provide accurate medical information and advice in a caring, professional manner. Keep responses concise, practical, and easy to understand. Always remind users to consult healthcare professionals for serious concerns or emergencies. Be warm and supportive."

// Completion parameters are fixed for the assistant persona and are not
// caller tunables.
const (
	AnswerTemperature  float32 = 0.7
	AnswerMaxTokens            = 1024
	ExplainTemperature float32 = 0.6
	ExplainMaxTokens           = 400

	transcriptionLanguage = "en"
)

// ChatMessage is a role-tagged message sent to the chat completion API.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Models binds one model per modality class. The binding is configuration,
// never a per-call choice.
type Models struct {
	Chat    string
	Vision  string
	Whisper string
}

// ChatCompleter is the subset of the client the explanation generator needs.
type ChatCompleter interface {
	CompleteChat(ctx context.Context, messages []ChatMessage, temperature float32, maxTokens int) (string, error)
}

// completionAPI abstracts the Groq SDK surface so tests can script responses.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Client calls the Groq OpenAI-compatible API for chat, vision, and speech.
type Client struct {
	api    completionAPI
	models Models
	logger *logging.Logger
}

// NewClient constructs a Groq-backed inference client. The API key and model
// bindings are supplied by the caller; nothing is read from the environment.
func NewClient(apiKey, baseURL string, models Models, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ai: groq api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		api:    openai.NewClientWithConfig(cfg),
		models: models,
		logger: logger,
	}, nil
}

// newClientWithAPI wires a scripted API implementation; used by tests.
func newClientWithAPI(api completionAPI, models Models, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{api: api, models: models, logger: logger}
}

// BuildChatMessages assembles the fixed persona, an optional single
// prior-context turn, and the current user input.
func BuildChatMessages(userText, context string) []ChatMessage {
	messages := []ChatMessage{{Role: ChatRoleSystem, Content: SystemPersona}}
	if context != "" {
		messages = append(messages, ChatMessage{Role: ChatRoleAssistant, Content: context})
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: userText})
	return messages
}

// CompleteChat sends the ordered message list to the chat model and returns
// the assistant text. Failures surface as errors; fallback text is the
// caller's responsibility.
func (c *Client) CompleteChat(ctx context.Context, messages []ChatMessage, temperature float32, maxTokens int) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		switch role {
		case ChatRoleSystem, ChatRoleUser, ChatRoleAssistant:
		default:
			role = ChatRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.models.Chat,
		Messages:    oaMsgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("ai: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteVision sends a single-turn multimodal request combining the prompt
// and inline image data against the vision model.
func (c *Client) CompleteVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("ai: vision request requires image bytes")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.models.Vision,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: ChatRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
		Temperature: AnswerTemperature,
		MaxTokens:   AnswerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("ai: vision completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: vision completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe converts speech to text with the fixed English language hint.
// Empty or silent audio yields an empty transcript, not an error.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.models.Whisper,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: transcriptionLanguage,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("ai: transcription failed: %w", err)
	}
	return resp.Text, nil
}
