// Package assistant streams chat and research answers and synthesizes speech.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyInput is returned when there is nothing to send to the model.
var ErrEmptyInput = errors.New("assistant: empty input")

const chatSystemPrompt = `You are a coach in a prompt-writing battle. Help the player sharpen their prompt for the room's topic:
suggest vivid details, structure and constraints. Keep answers short and never write the final prompt for them verbatim.`

const researchSystemPrompt = `You are a research assistant. Give a concise, factual briefing on the query with concrete
details a writer could use. Plain text only.`

// Part is one piece of a chat message. Only text parts are forwarded.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is a chat message as sent by the web client: either Content or Parts is set.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// Text flattens the message to plain text.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" || p.Type == "" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Config selects models for the client.
type Config struct {
	ChatModel string
	TTSModel  string
	TTSVoice  string
}

// Client talks to an OpenAI-compatible API.
type Client struct {
	api *openai.Client
	cfg Config
}

func New(api *openai.Client, cfg Config) *Client {
	return &Client{api: api, cfg: cfg}
}

// StreamChat streams the assistant's reply to messages into w, calling flush after every chunk.
func (c *Client) StreamChat(ctx context.Context, messages []Message, w io.Writer, flush func()) error {
	req := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt}}
	for _, m := range messages {
		text := m.Text()
		if text == "" {
			continue
		}
		req = append(req, openai.ChatCompletionMessage{Role: chatRole(m.Role), Content: text})
	}
	if len(req) == 1 {
		return ErrEmptyInput
	}
	return c.stream(ctx, req, w, flush)
}

// StreamResearch streams a plain-text briefing on query into w.
func (c *Client) StreamResearch(ctx context.Context, query string, w io.Writer, flush func()) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyInput
	}
	return c.stream(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: researchSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: query},
	}, w, flush)
}

func (c *Client) stream(ctx context.Context, msgs []openai.ChatCompletionMessage, w io.Writer, flush func()) error {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.ChatModel,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read completion stream: %w", err)
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if _, err := io.WriteString(w, choice.Delta.Content); err != nil {
				return err
			}
			if flush != nil {
				flush()
			}
		}
	}
}

// Speech synthesizes text as MP3. The caller closes the returned reader.
func (c *Client) Speech(ctx context.Context, text string) (io.ReadCloser, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.cfg.TTSVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	return resp, nil
}

// chatRole keeps assistant turns; everything else, system included, is sent as user.
func chatRole(role string) string {
	if role == openai.ChatMessageRoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
