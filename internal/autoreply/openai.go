package autoreply

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// AIResponder answers visitor questions with a streamed model completion
// when an API key is configured. The canned replies remain the fallback.
type AIResponder struct {
	client openai.Client
}

func NewAIResponder(apiKey string) *AIResponder {
	return &AIResponder{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Reply streams an answer token by token through onToken and returns the
// full text when done.
func (a *AIResponder) Reply(ctx context.Context, department, question string, onToken func(string)) (string, error) {
	stream := a.client.Responses.NewStreaming(ctx, responses.ResponseNewParams{
		Model: openai.ChatModelGPT4o,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(buildPrompt(department, question)),
		},
	})
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		event := stream.Current()
		if event.Type == "response.output_text.delta" {
			full.WriteString(event.Delta)
			if onToken != nil {
				onToken(event.Delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return full.String(), nil
}

func buildPrompt(department, question string) string {
	var sb strings.Builder
	sb.WriteString(`You are a professional, courteous support assistant for an industrial generator manufacturer. `)
	sb.WriteString(`The company sells and services diesel and gas generator sets, spare parts, and commissioning. `)
	sb.WriteString(`Answer briefly and helpfully, in the same language the visitor writes in. `)
	sb.WriteString(`If the question needs account-specific or contractual details, say a human agent will follow up rather than guessing.`)
	sb.WriteString("\n\n")
	if department != "" {
		sb.WriteString(fmt.Sprintf("The visitor contacted the %q department.\n", department))
	}
	sb.WriteString("Visitor question: " + question + "\n")
	return sb.String()
}
