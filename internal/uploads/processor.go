package uploads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/medassist/medassist-ai-platform/internal/ai"
	"github.com/medassist/medassist-ai-platform/internal/chat"
	"github.com/medassist/medassist-ai-platform/internal/media"
	"github.com/medassist/medassist-ai-platform/internal/observability/metrics"
	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// analysisPromptLimit bounds how much extracted document text is sent for
// the upload summary.
const analysisPromptLimit = 2000

const analysisUnavailable = "File uploaded successfully but could not be analyzed automatically."

// Analyzer is the inference surface the processor depends on.
type Analyzer interface {
	CompleteChat(ctx context.Context, messages []ai.ChatMessage, temperature float32, maxTokens int) (string, error)
	CompleteVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// DocumentReader extracts text and image bytes from stored files.
type DocumentReader interface {
	ExtractDocument(path string) (media.DocumentText, error)
	ReadImage(path string) ([]byte, string, error)
}

// VideoAnalyzer runs the full video turn pipeline.
type VideoAnalyzer interface {
	HandleTurn(ctx context.Context, turn chat.Turn) chat.InferenceResult
}

// Processor derives extracted text and an AI analysis for a freshly stored
// upload. All processing is best-effort; a failure leaves the record with a
// fixed placeholder analysis and never fails the upload itself.
type Processor struct {
	inference Analyzer
	extractor DocumentReader
	video     VideoAnalyzer
	metrics   *metrics.TurnMetrics
	logger    *logging.Logger
}

// NewProcessor wires the upload analysis pipeline.
func NewProcessor(inference Analyzer, extractor DocumentReader, video VideoAnalyzer, m *metrics.TurnMetrics, logger *logging.Logger) *Processor {
	if inference == nil {
		panic("uploads: inference client cannot be nil")
	}
	if extractor == nil {
		panic("uploads: extractor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		inference: inference,
		extractor: extractor,
		video:     video,
		metrics:   m,
		logger:    logger,
	}
}

// Process fills rec.ExtractedText and rec.AIAnalysis according to the
// upload's category. Files categorized as "other" are stored untouched.
func (p *Processor) Process(ctx context.Context, rec *UploadRecord) {
	var ok bool
	switch rec.Category {
	case media.CategoryDocument:
		ok = p.processDocument(ctx, rec)
	case media.CategoryImage:
		ok = p.processImage(ctx, rec)
	case media.CategoryAudio:
		ok = p.processAudio(ctx, rec)
	case media.CategoryVideo:
		ok = p.processVideo(ctx, rec)
	default:
		p.metrics.ObserveUpload(string(rec.Category), true)
		return
	}
	p.metrics.ObserveUpload(string(rec.Category), ok)
}

func (p *Processor) processDocument(ctx context.Context, rec *UploadRecord) bool {
	doc, err := p.extractor.ExtractDocument(rec.FilePath)
	if err != nil {
		p.logger.Warn("document extraction failed", "upload_id", rec.ID, "error", err)
		rec.AIAnalysis = analysisUnavailable
		return false
	}
	rec.ExtractedText = doc.Text
	if doc.Text == "" {
		return true
	}

	excerpt := media.TruncateText(doc.Text, analysisPromptLimit)
	prompt := fmt.Sprintf("Analyze this medical document and provide a brief summary:\n\n%s", excerpt)
	summary, err := p.inference.CompleteChat(ctx, ai.BuildChatMessages(prompt, ""), ai.AnswerTemperature, ai.AnswerMaxTokens)
	if err != nil {
		p.logger.Warn("document summary failed", "upload_id", rec.ID, "error", err)
		return false
	}
	rec.AIAnalysis = summary
	return true
}

func (p *Processor) processImage(ctx context.Context, rec *UploadRecord) bool {
	imageBytes, mimeType, err := p.extractor.ReadImage(rec.FilePath)
	if err != nil {
		p.logger.Warn("image read failed", "upload_id", rec.ID, "error", err)
		rec.AIAnalysis = analysisUnavailable
		return false
	}

	prompt := "Please analyze this medical image in detail. Describe what you observe, any visible symptoms, conditions, or concerns. Provide medical insights and recommendations. Be professional and thorough."
	analysis, err := p.inference.CompleteVision(ctx, prompt, imageBytes, mimeType)
	if err != nil {
		p.logger.Warn("image analysis failed", "upload_id", rec.ID, "error", err)
		rec.AIAnalysis = "Image received and processed"
		return false
	}
	rec.ExtractedText = analysis
	rec.AIAnalysis = analysis
	return true
}

func (p *Processor) processAudio(ctx context.Context, rec *UploadRecord) bool {
	audioBytes, err := os.ReadFile(rec.FilePath)
	if err != nil {
		p.logger.Warn("audio read failed", "upload_id", rec.ID, "error", err)
		rec.ExtractedText = "Audio received"
		rec.AIAnalysis = analysisUnavailable
		return false
	}

	transcript, err := p.inference.Transcribe(ctx, audioBytes, filepath.Base(rec.FilePath))
	if err != nil {
		p.logger.Warn("audio transcription failed", "upload_id", rec.ID, "error", err)
		rec.ExtractedText = "Audio received"
		return false
	}
	rec.ExtractedText = transcript

	prompt := fmt.Sprintf("User's audio message (transcribed): %q", transcript)
	response, err := p.inference.CompleteChat(ctx, ai.BuildChatMessages(prompt, ""), ai.AnswerTemperature, ai.AnswerMaxTokens)
	if err != nil {
		p.logger.Warn("audio analysis failed", "upload_id", rec.ID, "error", err)
		return false
	}
	rec.AIAnalysis = response
	return true
}

func (p *Processor) processVideo(ctx context.Context, rec *UploadRecord) bool {
	if p.video == nil {
		rec.AIAnalysis = analysisUnavailable
		return false
	}
	result := p.video.HandleTurn(ctx, chat.Turn{
		Modality: chat.ModalityVideo,
		FilePath: rec.FilePath,
	})
	rec.ExtractedText = "Video processed"
	rec.AIAnalysis = result.Content
	return result.Success
}
