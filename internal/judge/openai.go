package judge

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// OpenAIEvaluator asks an OpenAI-compatible chat model for a structured verdict.
type OpenAIEvaluator struct {
	client *openai.Client
	model  string
	schema *jsonschema.Definition
}

// NewOpenAIEvaluator builds the response schema once from Verdict.
func NewOpenAIEvaluator(client *openai.Client, model string) (*OpenAIEvaluator, error) {
	schema, err := jsonschema.GenerateSchemaForType(Verdict{})
	if err != nil {
		return nil, fmt.Errorf("generate verdict schema: %w", err)
	}
	return &OpenAIEvaluator{client: client, model: model, schema: schema}, nil
}

// Evaluate sends req to the model and decodes the answer against the verdict schema.
func (e *OpenAIEvaluator) Evaluate(ctx context.Context, req Request) (*Verdict, error) {
	system, user := BuildMessages(req)
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "battle_verdict",
				Schema: e.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}

	var v Verdict
	if err := e.schema.Unmarshal(resp.Choices[0].Message.Content, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := v.Validate(req); err != nil {
		return nil, err
	}
	return &v, nil
}
