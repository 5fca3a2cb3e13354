package vision

import "time"

type Config struct {
	OllamaURL string
	Model     string
	Timeout   time.Duration
	FrameTTL  time.Duration
}

// Frame is a decoded client frame held briefly in the frame store while a
// detection cycle runs.
type Frame struct {
	SessionID string
	Timestamp int64
	Data      []byte
}

type SerialExtraction struct {
	SerialNumber string   `json:"serial_number"`
	ModelNumber  string   `json:"model_number"`
	Manufacturer string   `json:"manufacturer"`
	OtherCodes   []string `json:"other_codes"`
}

// CombinedDetection merges an object detection with an optional serial-label
// extraction from a second image.
type CombinedDetection struct {
	Object         string   `json:"object"`
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	SerialNumber   string   `json:"serial_number"`
	Manufacturer   string   `json:"manufacturer"`
	Condition      string   `json:"condition"`
	Issues         []string `json:"issues"`
	Description    string   `json:"description"`
	OtherCodes     []string `json:"other_codes"`
	ConfidenceNote string   `json:"confidence_note"`
}
