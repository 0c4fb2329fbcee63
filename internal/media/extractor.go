package media

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// Category classifies an upload from its declared content type. The category
// is decided once at creation and never changes.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
	CategoryOther    Category = "other"
)

// Categorize maps a declared MIME type to an upload category.
func Categorize(mimeType string) Category {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return CategoryImage
	case strings.HasPrefix(mimeType, "audio/"):
		return CategoryAudio
	case strings.HasPrefix(mimeType, "video/"):
		return CategoryVideo
	case mimeType == "application/pdf",
		strings.Contains(mimeType, "document"),
		mimeType == "text/plain":
		return CategoryDocument
	default:
		return CategoryOther
	}
}

// ErrUnreadableDocument reports a document that could not be parsed.
var ErrUnreadableDocument = errors.New("media: unreadable document")

// UnsupportedTypeError names a file extension no extractor handles.
type UnsupportedTypeError struct {
	Ext string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("media: unsupported document type: %s", e.Ext)
}

// DocumentText is the textual representation of an extracted document.
type DocumentText struct {
	Text        string
	Pages       int
	Diagnostics []string
}

var imageMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageMIMEType resolves an image MIME type from the file extension,
// defaulting to JPEG.
func ImageMIMEType(path string) string {
	if mime, ok := imageMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "image/jpeg"
}

// TruncateText cuts s to at most limit bytes without splitting a multi-byte
// rune at the boundary.
func TruncateText(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// Extractor converts uploaded files into textual representations and derives
// temporary artifacts from videos.
type Extractor struct {
	logger *logging.Logger
}

// NewExtractor creates a media extractor.
func NewExtractor(logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractDocument reads a PDF, Word, or plain-text file into text. Unknown
// extensions yield an UnsupportedTypeError; parse failures yield
// ErrUnreadableDocument.
func (e *Extractor) ExtractDocument(path string) (DocumentText, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return e.extractPDF(path)
	case ".docx", ".doc":
		return e.extractWord(path)
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return DocumentText{}, fmt.Errorf("%w: %s: %v", ErrUnreadableDocument, path, err)
		}
		return DocumentText{Text: string(data)}, nil
	default:
		return DocumentText{}, &UnsupportedTypeError{Ext: ext}
	}
}

func (e *Extractor) extractPDF(path string) (DocumentText, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return DocumentText{}, fmt.Errorf("%w: %s: %v", ErrUnreadableDocument, path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return DocumentText{}, fmt.Errorf("%w: %s: %v", ErrUnreadableDocument, path, err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, reader); err != nil {
		return DocumentText{}, fmt.Errorf("%w: %s: %v", ErrUnreadableDocument, path, err)
	}

	doc := DocumentText{Text: sb.String(), Pages: r.NumPage()}
	e.logger.Info("extracted pdf text", "path", path, "chars", len(doc.Text), "pages", doc.Pages)
	return doc, nil
}

func (e *Extractor) extractWord(path string) (DocumentText, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return DocumentText{}, fmt.Errorf("%w: %s: %v", ErrUnreadableDocument, path, err)
	}
	defer r.Close()

	text, diags := wordPlainText(r.Editable().GetContent())
	doc := DocumentText{Text: text, Diagnostics: diags}
	e.logger.Info("extracted word text", "path", path, "chars", len(doc.Text))
	return doc, nil
}

// wordPlainText pulls the character data out of the document XML. Formatting
// runs are dropped; malformed trailing markup is captured as a diagnostic
// rather than a failure.
func wordPlainText(content string) (string, []string) {
	var (
		sb    strings.Builder
		diags []string
		inRun bool
	)
	decoder := xml.NewDecoder(strings.NewReader(content))
	for {
		tok, err := decoder.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				diags = append(diags, err.Error())
			}
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
			if t.Name.Local == "p" && sb.Len() > 0 {
				sb.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inRun = false
			}
		case xml.CharData:
			if inRun {
				sb.Write(t)
			}
		}
	}
	return sb.String(), diags
}

// ReadImage loads an image file for inline vision inference.
func (e *Extractor) ReadImage(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("media: read image %s: %w", path, err)
	}
	return data, ImageMIMEType(path), nil
}

// ExtractFrame captures a single still frame one second into the video. The
// returned path is a temporary artifact the caller must remove.
func (e *Extractor) ExtractFrame(videoPath string) (string, error) {
	framePath := replaceExt(videoPath, "_thumb.jpg")
	err := ffmpeg.Input(videoPath, ffmpeg.KwArgs{"ss": "00:00:01"}).
		Output(framePath, ffmpeg.KwArgs{"vframes": 1, "s": "640x480"}).
		OverWriteOutput().
		Silent(true).
		Run()
	if err != nil {
		return "", fmt.Errorf("media: extract frame from %s: %w", videoPath, err)
	}
	return framePath, nil
}

// ExtractAudioTrack re-encodes the video's audio track to MP3. Videos without
// an audio track fail here; callers treat that as best-effort.
func (e *Extractor) ExtractAudioTrack(videoPath string) (string, error) {
	audioPath := replaceExt(videoPath, ".mp3")
	err := ffmpeg.Input(videoPath).
		Output(audioPath, ffmpeg.KwArgs{"format": "mp3", "vn": ""}).
		OverWriteOutput().
		Silent(true).
		Run()
	if err != nil {
		return "", fmt.Errorf("media: extract audio from %s: %w", videoPath, err)
	}
	return audioPath, nil
}

// RemoveArtifact deletes a temporary file. Removing a file that is already
// gone is not an error.
func (e *Extractor) RemoveArtifact(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("failed to remove artifact", "path", path, "error", err)
	}
}

func replaceExt(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix
}
