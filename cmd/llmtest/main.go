package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/medassist/medassist-ai-platform/internal/ai"
	appconfig "github.com/medassist/medassist-ai-platform/internal/config"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// llmtest sends a canned patient conversation to the configured Groq models
// and prints the response. Useful for verifying credentials and model names
// before starting the API server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	if cfg.GroqAPIKey == "" {
		log.Fatal("GROQ_API_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := ai.NewClient(cfg.GroqAPIKey, cfg.GroqBaseURL, ai.Models{
		Chat:    cfg.ChatModel,
		Vision:  cfg.VisionModel,
		Whisper: cfg.WhisperModel,
	}, logging.New("info"))
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	messages := ai.BuildChatMessages(
		"I've had a mild headache for two days. Should I be worried?",
		"patient: Hello\nai: Hi, how can I help you today?",
	)

	fmt.Printf("chat model: %s\n", cfg.ChatModel)
	start := time.Now()
	reply, err := client.CompleteChat(ctx, messages, ai.AnswerTemperature, ai.AnswerMaxTokens)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("chat completion failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("response (%v):\n%s\n", elapsed.Round(time.Millisecond), reply)
}
