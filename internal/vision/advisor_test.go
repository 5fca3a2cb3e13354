package vision

import (
	"context"
	"strings"
	"testing"
)

func TestAdvise(t *testing.T) {
	detector, _ := newTestDetector(t, "  Replacing the seal costs around 10 euros.  ")

	answer, err := detector.Advise(context.Background(), AdviceRequest{
		Question: "is it worth fixing?",
		Item:     "Philips Kettle (condition: broken)",
		History: []AdviceTurn{
			{Role: "user", Content: "my kettle leaks"},
			{Role: "assistant", Content: "It looks like the base seal is worn."},
		},
		Facts: []string{"Discussed repair costs"},
	})
	if err != nil {
		t.Fatalf("advise: %v", err)
	}
	if answer != "Replacing the seal costs around 10 euros." {
		t.Errorf("answer = %q, should be trimmed", answer)
	}
}

func TestSummarizeRepairVideo(t *testing.T) {
	detector, _ := newTestDetector(t, "1. Unplug the kettle\n2. Replace the seal")

	summary, err := detector.SummarizeRepairVideo(context.Background(),
		"Kettle Seal Replacement", strings.Repeat("long description ", 200))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.HasPrefix(summary, "1. Unplug") {
		t.Errorf("summary = %q", summary)
	}
}
