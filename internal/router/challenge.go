package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/preppal/internal/pipeline"
)

// Challenge request tags.
const (
	TagTranscribe        Tag = "transcribe"
	TagGrade             Tag = "grade"
	TagQuickGrade        Tag = "quickGrade"
	TagGenerateQuestions Tag = "generateQuestions"
	TagRunFullPipeline   Tag = "runFullPipeline"
	TagSubmitAnswer      Tag = "submitAnswer"
	TagDrawQuestions     Tag = "drawQuestions"
	TagAllowNavigation   Tag = "allowNavigation"
)

// Resetter zeroes the visit counter.
type Resetter interface {
	Reset()
}

type transcribePayload struct {
	Audio string `json:"audio"`
}

type generatePayload struct {
	Resume string `json:"resume"`
}

type drawPayload struct {
	Count int `json:"count"`
}

// RegisterChallenge wires every challenge tag to p. allowNavigation resets
// the visit counter held by cadence.
func RegisterChallenge(r *Router, p *pipeline.Pipeline, cadence Resetter) {
	r.Register(TagTranscribe, func(ctx context.Context, raw json.RawMessage) (any, error) {
		in, err := decode[transcribePayload](raw)
		if err != nil {
			return nil, err
		}
		if in.Audio == "" {
			return nil, fmt.Errorf("%w: audio is required", pipeline.ErrInvalidPayload)
		}
		text, err := p.Transcribe(ctx, in.Audio)
		if err != nil {
			return nil, err
		}
		return map[string]string{"transcription": text}, nil
	})

	r.Register(TagGrade, func(ctx context.Context, raw json.RawMessage) (any, error) {
		in, err := decode[pipeline.GradeInput](raw)
		if err != nil {
			return nil, err
		}
		return p.Grade(ctx, in)
	})

	r.Register(TagQuickGrade, func(ctx context.Context, raw json.RawMessage) (any, error) {
		in, err := decode[pipeline.QuickGradeInput](raw)
		if err != nil {
			return nil, err
		}
		qg, err := p.QuickGrade(ctx, in)
		if err != nil {
			return nil, err
		}
		return map[string]any{"quickGrade": qg}, nil
	})

	r.Register(TagGenerateQuestions, func(ctx context.Context, raw json.RawMessage) (any, error) {
		in, err := decode[generatePayload](raw)
		if err != nil {
			return nil, err
		}
		qs, err := p.GenerateQuestions(ctx, in.Resume)
		if err != nil {
			return nil, err
		}
		return map[string]any{"questions": qs}, nil
	})

	r.RegisterAsync(TagRunFullPipeline, func(ctx context.Context, raw json.RawMessage) (any, error) {
		sub, err := decode[pipeline.Submission](raw)
		if err != nil {
			return nil, err
		}
		return nil, p.RunFullPipeline(ctx, sub)
	})

	r.Register(TagSubmitAnswer, func(ctx context.Context, raw json.RawMessage) (any, error) {
		sub, err := decode[pipeline.Submission](raw)
		if err != nil {
			return nil, err
		}
		return p.SubmitAnswer(ctx, sub)
	})

	r.Register(TagDrawQuestions, func(ctx context.Context, raw json.RawMessage) (any, error) {
		in, err := decode[drawPayload](raw)
		if err != nil {
			return nil, err
		}
		if in.Count == 0 {
			in.Count = 1
		}
		qs, err := p.DrawQuestions(ctx, in.Count)
		if err != nil {
			return nil, err
		}
		return map[string]any{"questions": qs}, nil
	})

	r.Register(TagAllowNavigation, func(_ context.Context, _ json.RawMessage) (any, error) {
		cadence.Reset()
		return nil, nil
	})
}
