package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func twoPlayerRequest() Request {
	return Request{
		Topic: "Space pirates",
		Submissions: []Submission{
			{Label: 1, Prompt: strPtr("A galleon drifting through a nebula")},
			{Label: 2, Prompt: nil},
		},
	}
}

func TestVerdictValidate(t *testing.T) {
	req := twoPlayerRequest()
	valid := Verdict{
		Evaluations: []Evaluation{
			{Participant: 1, Creativity: 8, Effectiveness: 7, Clarity: 9, Originality: 6, Feedback: "nice"},
			{Participant: 2},
		},
		Winner:    1,
		Reasoning: "only one prompt",
	}
	require.NoError(t, valid.Validate(req))

	cases := map[string]func(v *Verdict){
		"missing evaluation": func(v *Verdict) { v.Evaluations = v.Evaluations[:1] },
		"unknown label":      func(v *Verdict) { v.Evaluations[1].Participant = 3 },
		"duplicate label":    func(v *Verdict) { v.Evaluations[1].Participant = 1 },
		"score too high":     func(v *Verdict) { v.Evaluations[0].Clarity = 11 },
		"negative score":     func(v *Verdict) { v.Evaluations[1].Originality = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := valid
			v.Evaluations = append([]Evaluation(nil), valid.Evaluations...)
			mutate(&v)
			assert.ErrorIs(t, v.Validate(req), ErrInvalidResponse)
		})
	}

	var nilVerdict *Verdict
	assert.ErrorIs(t, nilVerdict.Validate(req), ErrInvalidResponse)
}

func TestEvaluationTotal(t *testing.T) {
	e := Evaluation{Creativity: 1, Effectiveness: 2, Clarity: 3, Originality: 4}
	assert.Equal(t, 10, e.Total())
}

func TestBuildMessagesMarksMissingPrompts(t *testing.T) {
	system, user := BuildMessages(twoPlayerRequest())
	assert.NotEmpty(t, system)
	assert.Contains(t, user, "Topic: Space pirates")
	assert.Contains(t, user, "Participant 1:\nA galleon drifting through a nebula")
	assert.Contains(t, user, "Participant 2:\n"+NoPrompt)
}

func TestRequestHasSubmissions(t *testing.T) {
	assert.True(t, twoPlayerRequest().HasSubmissions())
	assert.False(t, Request{Submissions: []Submission{{Label: 1}}}.HasSubmissions())
}

// chatServer answers every chat completion with content.
func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotNil(t, body.ResponseFormat)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  body.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEvaluator(t *testing.T, srv *httptest.Server) *OpenAIEvaluator {
	t.Helper()
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	ev, err := NewOpenAIEvaluator(openai.NewClientWithConfig(cfg), "gpt-4o-mini")
	require.NoError(t, err)
	return ev
}

func TestOpenAIEvaluator(t *testing.T) {
	content := `{"evaluations":[
		{"participant":1,"creativity":8,"effectiveness":7,"clarity":9,"originality":6,"feedback":"vivid"},
		{"participant":2,"creativity":0,"effectiveness":0,"clarity":0,"originality":0,"feedback":"no prompt"}
	],"winner":1,"reasoning":"participant 1 was the only entry"}`

	ev := newTestEvaluator(t, chatServer(t, http.StatusOK, content))
	v, err := ev.Evaluate(context.Background(), twoPlayerRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, v.Winner)
	require.Len(t, v.Evaluations, 2)
	e, ok := v.Evaluation(1)
	require.True(t, ok)
	assert.Equal(t, 30, e.Total())
}

func TestOpenAIEvaluatorInvalidContent(t *testing.T) {
	ev := newTestEvaluator(t, chatServer(t, http.StatusOK, `not json`))
	_, err := ev.Evaluate(context.Background(), twoPlayerRequest())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestOpenAIEvaluatorOutOfRangeScore(t *testing.T) {
	content := `{"evaluations":[
		{"participant":1,"creativity":80,"effectiveness":7,"clarity":9,"originality":6,"feedback":""},
		{"participant":2,"creativity":0,"effectiveness":0,"clarity":0,"originality":0,"feedback":""}
	],"winner":1,"reasoning":""}`
	ev := newTestEvaluator(t, chatServer(t, http.StatusOK, content))
	_, err := ev.Evaluate(context.Background(), twoPlayerRequest())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestOpenAIEvaluatorUpstreamError(t *testing.T) {
	ev := newTestEvaluator(t, chatServer(t, http.StatusInternalServerError, ""))
	_, err := ev.Evaluate(context.Background(), twoPlayerRequest())
	assert.ErrorIs(t, err, ErrUpstream)
}
