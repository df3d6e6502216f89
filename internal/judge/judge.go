// Package judge scores a finished battle with a language model.
package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Score bounds for every criterion.
const (
	MinScore = 0
	MaxScore = 10
)

// NoPrompt stands in for a participant who never submitted.
const NoPrompt = "(no prompt submitted)"

var (
	// ErrUpstream means the model could not be reached or returned an error.
	ErrUpstream = errors.New("judge: upstream call failed")
	// ErrInvalidResponse means the model answered but the answer is not a usable verdict.
	ErrInvalidResponse = errors.New("judge: invalid response")
)

// Submission is one participant's entry. Label is the 1-based position in join order.
type Submission struct {
	Label  int
	Prompt *string
}

// Submitted reports whether the participant sent a prompt.
func (s Submission) Submitted() bool {
	return s.Prompt != nil
}

// Request is everything the model sees.
type Request struct {
	Topic       string
	Submissions []Submission
}

// HasSubmissions reports whether at least one participant submitted.
func (r Request) HasSubmissions() bool {
	for _, s := range r.Submissions {
		if s.Submitted() {
			return true
		}
	}
	return false
}

// Evaluation is the model's scoring of one participant.
type Evaluation struct {
	Participant   int    `json:"participant" description:"Label of the participant being scored"`
	Creativity    int    `json:"creativity" description:"Creativity score from 0 to 10"`
	Effectiveness int    `json:"effectiveness" description:"Effectiveness score from 0 to 10"`
	Clarity       int    `json:"clarity" description:"Clarity score from 0 to 10"`
	Originality   int    `json:"originality" description:"Originality score from 0 to 10"`
	Feedback      string `json:"feedback" description:"Short feedback for the participant"`
}

// Total is the sum of the four criteria.
func (e Evaluation) Total() int {
	return e.Creativity + e.Effectiveness + e.Clarity + e.Originality
}

// Verdict is the structured answer expected from the model.
type Verdict struct {
	Evaluations []Evaluation `json:"evaluations" description:"One evaluation per participant"`
	Winner      int          `json:"winner" description:"Label of the participant with the best prompt"`
	Reasoning   string       `json:"reasoning" description:"Why the winner was chosen"`
}

// Evaluator produces a verdict for a request.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Verdict, error)
}

// Validate checks v against req: exactly one evaluation per participant label and every
// score within bounds. The winner label is only advisory and is not checked here.
func (v *Verdict) Validate(req Request) error {
	if v == nil {
		return fmt.Errorf("%w: empty verdict", ErrInvalidResponse)
	}
	labels := make(map[int]bool, len(req.Submissions))
	for _, s := range req.Submissions {
		labels[s.Label] = false
	}
	if len(v.Evaluations) != len(labels) {
		return fmt.Errorf("%w: got %d evaluations for %d participants", ErrInvalidResponse, len(v.Evaluations), len(labels))
	}
	for _, e := range v.Evaluations {
		seen, ok := labels[e.Participant]
		if !ok {
			return fmt.Errorf("%w: unknown participant %d", ErrInvalidResponse, e.Participant)
		}
		if seen {
			return fmt.Errorf("%w: participant %d evaluated twice", ErrInvalidResponse, e.Participant)
		}
		labels[e.Participant] = true
		for name, score := range map[string]int{
			"creativity":    e.Creativity,
			"effectiveness": e.Effectiveness,
			"clarity":       e.Clarity,
			"originality":   e.Originality,
		} {
			if score < MinScore || score > MaxScore {
				return fmt.Errorf("%w: participant %d %s score %d out of range", ErrInvalidResponse, e.Participant, name, score)
			}
		}
	}
	return nil
}

// Evaluation returns the evaluation for label.
func (v *Verdict) Evaluation(label int) (Evaluation, bool) {
	for _, e := range v.Evaluations {
		if e.Participant == label {
			return e, true
		}
	}
	return Evaluation{}, false
}

const systemPrompt = `You are the judge of a prompt-writing battle. Each participant wrote a prompt for the given topic.
Score every participant from 0 to 10 on creativity, effectiveness, clarity and originality, give each a short piece of feedback,
pick the winner and explain your reasoning. A participant who did not submit must receive 0 on every criterion.`

// BuildMessages renders req into the system and user messages sent to the model.
func BuildMessages(req Request) (system, user string) {
	var b strings.Builder
	topic := req.Topic
	if topic == "" {
		topic = "(free choice)"
	}
	fmt.Fprintf(&b, "Topic: %s\n\n", topic)
	for _, s := range req.Submissions {
		prompt := NoPrompt
		if s.Prompt != nil {
			prompt = *s.Prompt
		}
		fmt.Fprintf(&b, "Participant %d:\n%s\n\n", s.Label, prompt)
	}
	return systemPrompt, strings.TrimSpace(b.String())
}
