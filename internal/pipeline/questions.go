package pipeline

import (
	"context"
	"fmt"
)

// GeneratedQuestionCount is how many personalized questions are kept.
const GeneratedQuestionCount = 5

// personalizedChance is the probability of drawing from the personalized set.
const personalizedChance = 0.3

// questionBank is the built-in behavioral question set.
var questionBank = []string{
	"Tell me about a time when you had to work under pressure. How did you handle it?",
	"Describe a situation where you had to resolve a conflict with a team member.",
	"Give me an example of a goal you set and how you achieved it.",
	"Tell me about a time when you failed. What did you learn from it?",
	"Describe a situation where you had to adapt to significant changes.",
	"Tell me about a time when you showed leadership.",
	"Describe a challenging project you worked on and how you overcame obstacles.",
	"Give me an example of when you had to make a difficult decision.",
	"Tell me about a time when you had to learn something new quickly.",
	"Describe a situation where you went above and beyond what was expected.",
	"Tell me about a time when you received constructive criticism. How did you respond?",
	"Describe a situation where you had to work with a difficult person.",
	"Give me an example of when you demonstrated creativity or innovation.",
	"Tell me about a time when you had to prioritize multiple tasks.",
	"Describe a situation where you took initiative without being asked.",
	"Tell me about a time when you had to persuade someone to see your point of view.",
	"Describe a project where you had to collaborate with others.",
	"Tell me about a time when you made a mistake and how you handled it.",
	"Give me an example of when you exceeded expectations.",
	"Describe a situation where you had to handle competing priorities.",
}

// QuestionBank returns a copy of the built-in questions.
func QuestionBank() []string {
	return append([]string(nil), questionBank...)
}

// MaxDrawCount bounds a single DrawQuestions call.
const MaxDrawCount = 10

// DrawQuestions picks n questions. Each is drawn from the personalized set
// with fixed probability when that set is non-empty, otherwise from the
// built-in bank, uniformly within the chosen set.
func (p *Pipeline) DrawQuestions(ctx context.Context, n int) ([]string, error) {
	if n < 1 || n > MaxDrawCount {
		return nil, fmt.Errorf("%w: question count %d out of range", ErrInvalidPayload, n)
	}

	custom, err := p.repo.GetCustomQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load custom questions: %w", err)
	}

	p.randMu.Lock()
	defer p.randMu.Unlock()

	out := make([]string, 0, n)
	for range n {
		set := questionBank
		if len(custom) > 0 && p.rand.Float64() < personalizedChance {
			set = custom
		}
		out = append(out, set[p.rand.IntN(len(set))])
	}
	return out, nil
}
