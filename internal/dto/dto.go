package dto

// CreateSessionRequest starts a new repair conversation.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

type AddMessageRequest struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// UpdateItemRequest carries the user-corrected fields of a detected item.
type UpdateItemRequest struct {
	Object       string   `json:"object"`
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	SerialNumber string   `json:"serial_number"`
	Condition    string   `json:"condition"`
	Issues       []string `json:"issues"`
	Description  string   `json:"description"`
}

// AppendContextRequest adds one key fact to a session's rolling context.
type AppendContextRequest struct {
	Entry string `json:"entry"`
}

type RepairSearchRequest struct {
	Object    string   `json:"object"`
	Brand     string   `json:"brand"`
	Model     string   `json:"model"`
	Condition string   `json:"condition"`
	Issues    []string `json:"issues"`
}

// TranscriptRequest asks for the summarized content of one repair video.
type TranscriptRequest struct {
	VideoID string `json:"video_id"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// ChatResponse is the unified conversational reply: the assistant text plus
// structured payloads for the client to render as cards.
type ChatResponse struct {
	SessionID    string `json:"session_id"`
	Message      string `json:"message"`
	ResponseType string `json:"response_type"`
	Data         any    `json:"data,omitempty"`
	Cards        []Card `json:"cards,omitempty"`
}

// Card is one rich UI block attached to a chat reply.
type Card struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
