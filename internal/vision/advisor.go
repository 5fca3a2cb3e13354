package vision

import (
	"context"
	"fmt"
	"strings"
)

// AdviceTurn is one prior exchange fed back to the model as memory.
type AdviceTurn struct {
	Role    string
	Content string
}

// AdviceRequest carries a user question plus the session memory it should be
// answered against.
type AdviceRequest struct {
	Question string
	Item     string
	History  []AdviceTurn
	Facts    []string
}

// Advise answers a repair question conversationally, grounded on the
// detected item and the session's rolling memory.
func (d *Detector) Advise(ctx context.Context, req AdviceRequest) (string, error) {
	var b strings.Builder
	b.WriteString("You are a practical repair assistant. Answer the user's question about their item.\n\n")
	if req.Item != "" {
		fmt.Fprintf(&b, "Item being discussed: %s\n\n", req.Item)
	}
	if len(req.Facts) > 0 {
		b.WriteString("Known facts from this conversation:\n")
		for _, fact := range req.Facts {
			fmt.Fprintf(&b, "- %s\n", fact)
		}
		b.WriteString("\n")
	}
	if len(req.History) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range req.History {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	b.WriteString("Give a concise, practical answer. Mention costs or tradeoffs when relevant. Do not use thinking tags.")

	response, err := d.client.Generate(ctx, b.String(), nil)
	if err != nil {
		return "", fmt.Errorf("advice generation: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// SummarizeRepairVideo condenses a tutorial video's description into the key
// repair steps. Satisfies the repair package's summarizer.
func (d *Detector) SummarizeRepairVideo(ctx context.Context, title, content string) (string, error) {
	const maxContentChars = 2000
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	prompt := fmt.Sprintf(`Based on this repair tutorial video, extract the key repair steps:

Video Title: %s
Description: %s

Provide a brief summary of:
1. What is being repaired
2. Tools needed (if mentioned)
3. Key steps

Keep it concise (3-5 bullet points). Do not use thinking tags.`, title, content)

	response, err := d.client.Generate(ctx, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("video summary: %w", err)
	}
	return strings.TrimSpace(response), nil
}
