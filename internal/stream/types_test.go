package stream

import (
	"testing"
)

func TestParseServerMessage_KnownTypes(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantType MessageType
		terminal bool
	}{
		{"processing started", `{"type":"processing_started"}`, TypeProcessingStarted, false},
		{"token", `{"type":"token","token":"he","partial":"he"}`, TypeToken, false},
		{"partial", `{"type":"partial","partial":"hello"}`, TypePartial, false},
		{"complete", `{"type":"complete","result":{"object":"laptop","condition":"damaged","issues":["cracked screen"],"description":"x"},"confidence":0.82}`, TypeComplete, true},
		{"error", `{"type":"error","message":"boom"}`, TypeError, true},
		{"dropped", `{"type":"dropped","reason":"busy"}`, TypeDropped, true},
		{"low confidence", `{"type":"low_confidence","confidence":0.3}`, TypeLowConfidence, false},
		{"quality warning", `{"type":"quality_warning"}`, TypeQualityWarning, false},
		{"pong", `{"type":"pong"}`, TypePong, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseServerMessage([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ParseServerMessage failed: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, msg.Type)
			}
			if msg.Terminal() != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", msg.Terminal(), tt.terminal)
			}
		})
	}
}

func TestParseServerMessage_CompletePayload(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`{"type":"complete","result":{"object":"kettle","brand":"Philips","condition":"broken","issues":["detached handle"],"description":"broken kettle"},"confidence":0.82}`))
	if err != nil {
		t.Fatalf("ParseServerMessage failed: %v", err)
	}
	if msg.Result == nil {
		t.Fatal("expected result payload")
	}
	if msg.Result.Object != "kettle" || msg.Result.Brand != "Philips" {
		t.Errorf("unexpected result: %+v", msg.Result)
	}
	if msg.Confidence != 0.82 {
		t.Errorf("expected confidence 0.82, got %f", msg.Confidence)
	}
}

func TestParseServerMessage_UnknownType(t *testing.T) {
	if _, err := ParseServerMessage([]byte(`{"type":"surprise"}`)); err == nil {
		t.Error("unknown type should be rejected")
	}
}

func TestParseServerMessage_Malformed(t *testing.T) {
	if _, err := ParseServerMessage([]byte(`{not json`)); err == nil {
		t.Error("malformed payload should be rejected")
	}
}

func TestPercentConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.5, 50},
		{0.82, 82},
		{1, 100},
		{-0.1, 0},
		{1.5, 100},
	}
	for _, tt := range tests {
		if got := PercentConfidence(tt.in); got != tt.want {
			t.Errorf("PercentConfidence(%f) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStripDataURI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc123", "abc123"},
		{"data:image/jpeg;base64,abc123", "abc123"},
		{"data:image/png;base64,xyz", "xyz"},
		{"data:text/plain,notbase64", "data:text/plain,notbase64"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripDataURI(tt.in); got != tt.want {
			t.Errorf("StripDataURI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
