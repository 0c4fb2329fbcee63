package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender tags who produced a message.
type Sender string

const (
	SenderPatient Sender = "patient"
	SenderAI      Sender = "ai"
)

// Modality is the declared kind of a chat turn's payload. Dispatch over it is
// closed; anything unrecognized falls through to the text arm.
type Modality string

const (
	ModalityText     Modality = "text"
	ModalityImage    Modality = "image"
	ModalityAudio    Modality = "audio"
	ModalityVideo    Modality = "video"
	ModalityDocument Modality = "document"
)

// Message is one entry in a session's append-only log. AI replies are always
// textual, whatever modality triggered them, and only AI messages carry an
// explanation.
type Message struct {
	ID          uuid.UUID `json:"id"`
	Sender      Sender    `json:"sender"`
	Content     string    `json:"content"`
	Explanation string    `json:"explanation,omitempty"`
	Modality    Modality  `json:"messageType"`
	FileURL     string    `json:"fileUrl,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	FileType    string    `json:"fileType,omitempty"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Session is one conversation thread owned by a single patient. The session
// identifier is immutable once created.
type Session struct {
	ID           uuid.UUID `json:"-"`
	SessionID    string    `json:"sessionId"`
	PatientID    uuid.UUID `json:"-"`
	PatientName  string    `json:"-"`
	PatientEmail string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SessionSummary is the list view of a session.
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	MessageCount int       `json:"messageCount"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// InferenceResult is the transient outcome of one orchestrated turn. It is
// consumed immediately to build the AI message, never persisted as-is.
type InferenceResult struct {
	Content     string
	Explanation string
	Success     bool
	Provider    string
	ErrorDetail string
}

// Turn is one inbound patient interaction handed to the orchestrator. State
// is entirely the caller-supplied history window.
type Turn struct {
	Message  string
	Modality Modality
	FilePath string
	History  []Message
}

// MessageRequest is the payload of POST /chat/message.
type MessageRequest struct {
	SessionID   string   `json:"sessionId"`
	Message     string   `json:"message"`
	MessageType Modality `json:"messageType"`
	FileURL     string   `json:"fileUrl,omitempty"`
	FileName    string   `json:"fileName,omitempty"`
	FileType    string   `json:"fileType,omitempty"`
}

// MessageResponse is returned after a completed turn.
type MessageResponse struct {
	Success     bool   `json:"success"`
	AIResponse  string `json:"aiResponse"`
	Explanation string `json:"explanation,omitempty"`
	MessageID   string `json:"messageId"`
}
