package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/evidia/srex/internal/extract"
)

// producerTemperature is low because extraction is factual, not generative.
const producerTemperature = 0.2

// Producer implements extract.Producer by sending the article PDF to the
// Anthropic API and returning the raw model output for the pipeline to parse.
type Producer struct {
	client    Client
	model     string
	maxTokens int64
}

var _ extract.Producer = (*Producer)(nil)

// NewProducer wires a Client into the extraction pipeline. Returns nil if
// the client is nil.
func NewProducer(client Client, model string, maxTokens int) *Producer {
	if client == nil {
		return nil
	}
	return &Producer{
		client:    client,
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

// Extract runs the first extraction pass over the article PDF. When the
// request carries a template schema the template prompt is used; otherwise
// the default study-data prompt applies.
func (p *Producer) Extract(ctx context.Context, req extract.Request) (*extract.Response, error) {
	system := extractionSystemPrompt
	if len(req.TemplateSchema) > 0 {
		schema, err := json.MarshalIndent(req.TemplateSchema, "", "  ")
		if err != nil {
			return nil, eris.Wrap(err, "anthropic: marshal template schema")
		}
		system = fmt.Sprintf(templateSystemPromptFmt, schema)
	}
	return p.call(ctx, "extract", system, extractionUserPrompt, req.PDFPath)
}

// Verify runs the verification pass for fields the first pass left weak.
func (p *Producer) Verify(ctx context.Context, req extract.VerifyRequest) (*extract.Response, error) {
	initial, err := json.MarshalIndent(req.InitialExtraction, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: marshal initial extraction")
	}
	var list strings.Builder
	for _, f := range req.FieldsToVerify {
		fmt.Fprintf(&list, "- %s\n", f)
	}
	user := fmt.Sprintf(verificationUserPromptFmt, initial, strings.TrimRight(list.String(), "\n"))
	return p.call(ctx, "verify", verificationSystemPrompt, user, req.PDFPath)
}

func (p *Producer) call(ctx context.Context, phase, system, user, pdfPath string) (*extract.Response, error) {
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: read article pdf")
	}

	temp := producerTemperature
	resp, err := p.client.CreateMessage(ctx, MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      BuildCachedSystemBlocks(system),
		Temperature: &temp,
		Messages: []Message{
			{
				Role:      "user",
				Content:   user,
				Documents: [][]byte{pdf},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	resp.Usage.LogCost(p.model, phase)

	return &extract.Response{
		Text:             resp.Text(),
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}
