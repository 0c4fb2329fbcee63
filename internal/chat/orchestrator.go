package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/medassist/medassist-ai-platform/internal/ai"
	"github.com/medassist/medassist-ai-platform/internal/media"
	"github.com/medassist/medassist-ai-platform/internal/observability/metrics"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// Provider tags recorded on InferenceResult for observability.
const (
	ProviderChat     = "groq-llama-3.3-70b"
	ProviderVision   = "groq-vision-llama4-scout"
	ProviderWhisper  = "groq-whisper-turbo"
	ProviderDocument = "groq-document-analysis"
	ProviderVideo    = "groq-vision-scout+whisper"
	ProviderBasic    = "basic"
	ProviderFallback = "fallback"
	ProviderError    = "error"
)

// Fixed user-facing fallbacks. Provider failures never surface raw errors.
const (
	textFallback     = "I apologize, but I'm having trouble connecting to my AI service right now. Please try again in a moment. If this persists, please contact support."
	imageFallback    = "📷 I can see you've shared an image. While I'm experiencing technical difficulties with detailed image analysis, please describe what you're seeing or any concerns you have, and I'll provide medical guidance."
	audioFallback    = "🎤 I've received your audio message but I'm having trouble processing it right now. Please try typing your message, or try again in a moment."
	documentFallback = "📄 I've received your document but I'm having trouble reading it. Please try uploading it again or describe its contents, and I'll help you analyze it."
	videoFallback    = "🎥 I've received your video. Please describe what you'd like me to know about it, and I'll provide medical guidance."
	documentAck      = "📄 I've received your document. Please let me know what you'd like to discuss about it."

	defaultPrompt = "Please provide some information."
)

const (
	historyContextWindow = 3
	documentPromptLimit  = 4000
)

// InferenceClient is the provider surface the orchestrator depends on.
type InferenceClient interface {
	CompleteChat(ctx context.Context, messages []ai.ChatMessage, temperature float32, maxTokens int) (string, error)
	CompleteVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// MediaExtractor converts files into model-consumable representations.
type MediaExtractor interface {
	ExtractDocument(path string) (media.DocumentText, error)
	ReadImage(path string) ([]byte, string, error)
	ExtractFrame(videoPath string) (string, error)
	ExtractAudioTrack(videoPath string) (string, error)
	RemoveArtifact(path string)
}

// ExplanationSource rationalizes an answer; always best-effort.
type ExplanationSource interface {
	Explain(ctx context.Context, question, answer, contextText string) string
}

// Orchestrator routes one chat turn by modality through the media extractor
// and inference client, assembling a reply plus explanation. Each turn is
// stateless given the supplied history window.
type Orchestrator struct {
	inference InferenceClient
	extractor MediaExtractor
	explainer ExplanationSource
	metrics   *metrics.TurnMetrics
	logger    *logging.Logger
}

// NewOrchestrator wires the turn pipeline.
func NewOrchestrator(inference InferenceClient, extractor MediaExtractor, explainer ExplanationSource, m *metrics.TurnMetrics, logger *logging.Logger) *Orchestrator {
	if inference == nil {
		panic("chat: inference client cannot be nil")
	}
	if extractor == nil {
		panic("chat: media extractor cannot be nil")
	}
	if explainer == nil {
		panic("chat: explanation source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		inference: inference,
		extractor: extractor,
		explainer: explainer,
		metrics:   m,
		logger:    logger,
	}
}

// HandleTurn processes one inbound turn. Downstream failures are caught here
// and mapped to fixed apology content; the result always carries some AI text.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) InferenceResult {
	started := time.Now()
	contextText := historyContext(turn.History)

	var result InferenceResult
	switch turn.Modality {
	case ModalityText:
		result = o.processText(ctx, turn.Message, contextText)
	case ModalityImage:
		result = o.processImage(ctx, turn.FilePath, turn.Message)
	case ModalityAudio:
		result = o.processAudio(ctx, turn.FilePath, turn.Message)
	case ModalityVideo:
		result = o.processVideo(ctx, turn.FilePath, turn.Message)
	case ModalityDocument:
		result = o.processDocument(ctx, turn.FilePath, turn.Message, contextText)
	default:
		message := turn.Message
		if strings.TrimSpace(message) == "" {
			message = defaultPrompt
		}
		result = o.processText(ctx, message, contextText)
	}

	o.metrics.ObserveTurn(string(turn.Modality), result.Success, time.Since(started).Seconds())
	return result
}

// historyContext renders at most the last three history entries as
// "<role>: <content>" lines, newest-last.
func historyContext(history []Message) string {
	if len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > historyContextWindow {
		recent = recent[len(recent)-historyContextWindow:]
	}
	lines := make([]string, 0, len(recent))
	for _, msg := range recent {
		role := "Assistant"
		if msg.Sender == SenderPatient {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

func (o *Orchestrator) processText(ctx context.Context, text, contextText string) InferenceResult {
	messages := ai.BuildChatMessages(text, contextText)
	content, err := o.inference.CompleteChat(ctx, messages, ai.AnswerTemperature, ai.AnswerMaxTokens)
	if err != nil {
		o.logger.Error("chat completion failed", "error", err)
		return InferenceResult{
			Content:     textFallback,
			Success:     false,
			Provider:    ProviderError,
			ErrorDetail: err.Error(),
		}
	}

	return InferenceResult{
		Content:     content,
		Explanation: o.explainer.Explain(ctx, text, content, contextText),
		Success:     true,
		Provider:    ProviderChat,
	}
}

func (o *Orchestrator) processImage(ctx context.Context, imagePath, userMessage string) InferenceResult {
	imageBytes, mimeType, err := o.extractor.ReadImage(imagePath)
	if err != nil {
		o.logger.Error("image read failed", "path", imagePath, "error", err)
		return InferenceResult{Content: imageFallback, Success: false, Provider: ProviderFallback, ErrorDetail: err.Error()}
	}

	prompt := visionPrompt(userMessage)
	analysis, err := o.inference.CompleteVision(ctx, prompt, imageBytes, mimeType)
	if err != nil {
		o.logger.Error("vision completion failed", "error", err)
		return InferenceResult{Content: imageFallback, Success: false, Provider: ProviderFallback, ErrorDetail: err.Error()}
	}

	question := userMessage
	if question == "" {
		question = "Image analysis request"
	}

	return InferenceResult{
		Content:     analysis,
		Explanation: o.explainer.Explain(ctx, question, analysis, "Visual medical image analysis"),
		Success:     true,
		Provider:    ProviderVision,
	}
}

func visionPrompt(userMessage string) string {
	if userMessage != "" {
		return fmt.Sprintf("The user shared an image and says: %q. Please analyze this medical image and provide relevant medical insights, observations, and recommendations. Be specific about what you see.", userMessage)
	}
	return "Please analyze this medical image in detail. Describe what you observe, any visible symptoms, conditions, or concerns. Provide medical insights and recommendations. Be professional and thorough."
}

func (o *Orchestrator) processAudio(ctx context.Context, audioPath, userMessage string) InferenceResult {
	audioBytes, err := os.ReadFile(audioPath)
	if err != nil {
		o.logger.Error("audio read failed", "path", audioPath, "error", err)
		return InferenceResult{Content: audioFallback, Success: false, Provider: ProviderFallback, ErrorDetail: err.Error()}
	}

	transcript, err := o.inference.Transcribe(ctx, audioBytes, filepath.Base(audioPath))
	if err != nil {
		o.logger.Error("transcription failed", "error", err)
		return InferenceResult{Content: audioFallback, Success: false, Provider: ProviderFallback, ErrorDetail: err.Error()}
	}

	prompt := fmt.Sprintf("User's audio message (transcribed): %q", transcript)
	if userMessage != "" {
		prompt = fmt.Sprintf("User's audio message (transcribed): %q. Additional context: %s", transcript, userMessage)
	}

	inner := o.processText(ctx, prompt, "")
	return InferenceResult{
		Content:     fmt.Sprintf("**Transcription:** %s\n\n**Response:** %s", transcript, inner.Content),
		Explanation: inner.Explanation,
		Success:     inner.Success,
		Provider:    ProviderWhisper,
		ErrorDetail: inner.ErrorDetail,
	}
}

func (o *Orchestrator) processVideo(ctx context.Context, videoPath, userMessage string) InferenceResult {
	framePath, err := o.extractor.ExtractFrame(videoPath)
	if err != nil {
		o.logger.Error("frame extraction failed", "path", videoPath, "error", err)
		return InferenceResult{Content: videoFallback, Success: false, Provider: ProviderFallback, ErrorDetail: err.Error()}
	}
	defer o.extractor.RemoveArtifact(framePath)

	// Audio transcription runs concurrently with the frame analysis; the two
	// operate on distinct derived artifacts.
	transcriptCh := make(chan string, 1)
	go func() {
		transcriptCh <- o.transcribeVideoAudio(ctx, videoPath)
	}()

	frameResult := o.processImage(ctx, framePath, "This is a frame from a video")
	transcript := <-transcriptCh

	var sb strings.Builder
	sb.WriteString("**Video Analysis:**\n\n")
	sb.WriteString(fmt.Sprintf("**Visual Content:** %s\n\n", frameResult.Content))
	if transcript != "" {
		sb.WriteString(fmt.Sprintf("**Audio Transcription:** %s\n\n", transcript))
	}
	if userMessage != "" {
		followUp := o.processText(ctx,
			fmt.Sprintf("Regarding this video: %s. Video context: %s", userMessage, frameResult.Content), "")
		sb.WriteString(fmt.Sprintf("**Response:** %s", followUp.Content))
	}
	combined := sb.String()

	question := userMessage
	if question == "" {
		question = "Video analysis request"
	}

	return InferenceResult{
		Content:     combined,
		Explanation: o.explainer.Explain(ctx, question, combined, "Video content analysis"),
		Success:     true,
		Provider:    ProviderVideo,
	}
}

// transcribeVideoAudio extracts and transcribes the audio track. Videos
// without one yield an empty transcript; the failure is swallowed.
func (o *Orchestrator) transcribeVideoAudio(ctx context.Context, videoPath string) string {
	audioPath, err := o.extractor.ExtractAudioTrack(videoPath)
	if err != nil {
		o.logger.Info("no audio track or audio extraction failed", "path", videoPath, "error", err)
		return ""
	}
	defer o.extractor.RemoveArtifact(audioPath)

	audioBytes, err := os.ReadFile(audioPath)
	if err != nil {
		o.logger.Warn("extracted audio unreadable", "path", audioPath, "error", err)
		return ""
	}
	transcript, err := o.inference.Transcribe(ctx, audioBytes, filepath.Base(audioPath))
	if err != nil {
		o.logger.Warn("video audio transcription failed", "error", err)
		return ""
	}
	return transcript
}

func (o *Orchestrator) processDocument(ctx context.Context, docPath, userMessage, contextText string) InferenceResult {
	if docPath == "" || !fileExists(docPath) {
		if strings.TrimSpace(userMessage) != "" {
			return o.processText(ctx, fmt.Sprintf("Regarding the document: %s", userMessage), contextText)
		}
		return InferenceResult{Content: documentAck, Success: true, Provider: ProviderBasic}
	}

	doc, err := o.extractor.ExtractDocument(docPath)
	if err != nil {
		o.logger.Error("document extraction failed", "path", docPath, "error", err)
		return InferenceResult{Content: documentFallback, Success: false, Provider: ProviderFallback, ErrorDetail: err.Error()}
	}

	truncated := media.TruncateText(doc.Text, documentPromptLimit)

	var prompt string
	if strings.TrimSpace(userMessage) != "" {
		prompt = fmt.Sprintf("The user uploaded a medical document and asks: %q\n\nDocument content:\n%s\n\nPlease analyze the document and answer their question. Provide relevant medical insights and recommendations.", userMessage, truncated)
	} else {
		prompt = fmt.Sprintf("Please analyze this medical document and provide a comprehensive summary, highlighting key medical information, diagnoses, treatments, test results, medications, and any important observations or recommendations.\n\nDocument content:\n%s", truncated)
	}

	inner := o.processText(ctx, prompt, "")
	return InferenceResult{
		Content:     fmt.Sprintf("**Document Analysis:**\n\n%s\n\n---\n*Document length: %d characters*", inner.Content, len(doc.Text)),
		Explanation: inner.Explanation,
		Success:     inner.Success,
		Provider:    ProviderDocument,
		ErrorDetail: inner.ErrorDetail,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
