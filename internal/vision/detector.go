package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rtr-labs/repaircam/internal/stream"
)

const objectPrompt = `Analyze this image carefully and identify any damage or issues.

CRITICAL: Look for these specific problems:
- BROKEN parts (detached, disconnected, snapped, separated components)
- CRACKED or fractured materials
- MISSING pieces or components
- BENT, warped, or deformed parts
- TORN, ripped, or worn materials
- RUST, corrosion, or oxidation
- LOOSE connections or wobbly parts

Provide the following information in JSON format:
{
    "object": "specific name of the object/item",
    "brand": "brand name if visible, otherwise 'Unknown'",
    "model": "model name/number if visible, otherwise 'Unknown'",
    "condition": "new/good/used/damaged/broken",
    "issues": ["list ALL visible issues, defects, and damage - be specific about what is broken or damaged"],
    "description": "brief description including the main problem",
    "confidence": 0.0
}

CONDITION GUIDE:
- "broken" = parts are detached, disconnected, snapped, or non-functional
- "damaged" = visible cracks, dents, rust, tears, but still attached
- "used" = wear and tear but fully functional
- "good" = minimal wear, fully functional
- "new" = no wear, like new condition

If something is DETACHED or DISCONNECTED, the condition MUST be "broken".
Set "confidence" to how certain you are, between 0 and 1.

IMPORTANT: Respond ONLY with the JSON, no other text. Do not use markdown formatting.`

const serialPrompt = `Look at this image and extract any serial number, model number, or identification codes visible.
Respond in JSON format:
{
    "serial_number": "the serial number if found, otherwise 'Not Found'",
    "model_number": "model number if different from serial, otherwise 'Not Found'",
    "manufacturer": "manufacturer name if visible, otherwise 'Unknown'",
    "other_codes": ["any other codes or numbers visible"]
}

IMPORTANT: Respond ONLY with the JSON, no other text. Do not use markdown formatting.`

// Detector wraps the model client with the repair-domain prompts and the
// tolerant JSON parsing the model output needs.
type Detector struct {
	client *Client
	logger *slog.Logger
}

func NewDetector(client *Client, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		client: client,
		logger: logger.With("component", "detector"),
	}
}

// LiveDetection is one live-stream inference outcome before it is mapped to
// wire messages.
type LiveDetection struct {
	Data       *stream.DetectionData
	Confidence float64
	Skipped    bool
	Reason     string
	ErrMessage string
}

type rawDetection struct {
	Object      string   `json:"object"`
	Brand       string   `json:"brand"`
	Model       string   `json:"model"`
	Condition   string   `json:"condition"`
	Issues      []string `json:"issues"`
	Description string   `json:"description"`
	Confidence  any      `json:"confidence"`
	Skipped     bool     `json:"skipped"`
	Reason      string   `json:"reason"`
	Error       string   `json:"error"`
}

// DetectObject runs single-shot object/damage detection on one image.
func (d *Detector) DetectObject(ctx context.Context, image []byte) (*stream.DetectionData, error) {
	response, err := d.client.Generate(ctx, objectPrompt, [][]byte{image})
	if err != nil {
		return nil, err
	}

	raw, ok := parseDetectionJSON(response)
	if !ok {
		d.logger.Warn("unparseable detection response", "head", head(response, 120))
		return &stream.DetectionData{
			Object:      "Detection failed",
			Brand:       "Unknown",
			Model:       "Unknown",
			Condition:   "unknown",
			Issues:      []string{},
			Description: head(response, 200),
		}, nil
	}
	return raw.detectionData(), nil
}

// ExtractSerial pulls serial/model/manufacturer codes from a label image.
func (d *Detector) ExtractSerial(ctx context.Context, image []byte) (*SerialExtraction, error) {
	response, err := d.client.Generate(ctx, serialPrompt, [][]byte{image})
	if err != nil {
		return nil, err
	}

	var out SerialExtraction
	cleaned, ok := extractJSON(response)
	if !ok || json.Unmarshal([]byte(cleaned), &out) != nil {
		d.logger.Warn("unparseable serial response", "head", head(response, 120))
		return &SerialExtraction{
			SerialNumber: "Not Found",
			ModelNumber:  "Not Found",
			Manufacturer: "Unknown",
			OtherCodes:   []string{},
		}, nil
	}
	if out.OtherCodes == nil {
		out.OtherCodes = []string{}
	}
	return &out, nil
}

// Combined runs object detection plus an optional serial extraction and
// merges the two, preferring label data for model/manufacturer.
func (d *Detector) Combined(ctx context.Context, itemImage, serialImage []byte) (*CombinedDetection, error) {
	object, err := d.DetectObject(ctx, itemImage)
	if err != nil {
		return nil, err
	}

	serial := &SerialExtraction{
		SerialNumber: "Not Provided",
		ModelNumber:  "Not Found",
		Manufacturer: "Unknown",
		OtherCodes:   []string{},
	}
	if len(serialImage) > 0 {
		serial, err = d.ExtractSerial(ctx, serialImage)
		if err != nil {
			return nil, err
		}
	}

	model := object.Model
	if serial.ModelNumber != "" && serial.ModelNumber != "Not Found" {
		model = serial.ModelNumber
	}
	manufacturer := serial.Manufacturer
	if manufacturer == "" || manufacturer == "Unknown" {
		manufacturer = object.Brand
	}

	return &CombinedDetection{
		Object:         object.Object,
		Brand:          object.Brand,
		Model:          model,
		SerialNumber:   serial.SerialNumber,
		Manufacturer:   manufacturer,
		Condition:      object.Condition,
		Issues:         object.Issues,
		Description:    object.Description,
		OtherCodes:     serial.OtherCodes,
		ConfidenceNote: "Please verify these details - AI detection may not be 100% accurate",
	}, nil
}

// DetectLive runs streaming detection for the live video path, forwarding
// each token as it arrives.
func (d *Detector) DetectLive(ctx context.Context, frame []byte, onToken func(token, partial string)) (*LiveDetection, error) {
	var partial strings.Builder
	response, err := d.client.GenerateStream(ctx, objectPrompt, [][]byte{frame}, func(token string) {
		partial.WriteString(token)
		if onToken != nil {
			onToken(token, partial.String())
		}
	})
	if err != nil {
		return nil, err
	}

	raw, ok := parseDetectionJSON(response)
	if !ok {
		return &LiveDetection{ErrMessage: "no JSON in model response"}, nil
	}
	if raw.Skipped {
		reason := raw.Reason
		if reason == "" {
			reason = "frame dropped"
		}
		return &LiveDetection{Skipped: true, Reason: reason}, nil
	}
	if raw.Error != "" {
		return &LiveDetection{ErrMessage: raw.Error}, nil
	}

	return &LiveDetection{
		Data:       raw.detectionData(),
		Confidence: normalizeConfidence(raw.Confidence),
	}, nil
}

func (r *rawDetection) detectionData() *stream.DetectionData {
	issues := r.Issues
	if issues == nil {
		issues = []string{}
	}
	return &stream.DetectionData{
		Object:      r.Object,
		Brand:       r.Brand,
		Model:       r.Model,
		Condition:   r.Condition,
		Issues:      issues,
		Description: r.Description,
	}
}

func parseDetectionJSON(response string) (*rawDetection, bool) {
	cleaned, ok := extractJSON(response)
	if !ok {
		return nil, false
	}
	var raw rawDetection
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, false
	}
	return &raw, true
}

// extractJSON finds the outermost JSON object in a model response, tolerating
// markdown code fences and prose around it.
func extractJSON(response string) (string, bool) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return cleaned[start : end+1], true
}

// normalizeConfidence coerces whatever the model produced into the canonical
// 0-1 fraction: numbers above 1 are treated as percentages, strings parsed.
func normalizeConfidence(v any) float64 {
	var c float64
	switch t := v.(type) {
	case float64:
		c = t
	case json.Number:
		c, _ = t.Float64()
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		if err != nil {
			return 0
		}
		c = parsed
	default:
		return 0
	}

	if c > 1 {
		c = c / 100
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
