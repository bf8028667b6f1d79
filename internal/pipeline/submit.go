package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/preppal/internal/domain"
	"github.com/ashureev/preppal/internal/metrics"
	"github.com/ashureev/preppal/internal/provider"
)

// Submission is one recorded answer to a challenge question.
type Submission struct {
	Question string `json:"question"`
	Audio    string `json:"audio"`
	// Resume and Role default to the stored settings when empty.
	Resume string `json:"resume,omitempty"`
	Role   string `json:"jobRole,omitempty"`
}

// SubmitResult describes the grant issued for a submission.
type SubmitResult struct {
	Mode           domain.GradingMode `json:"mode"`
	GrantedMinutes float64            `json:"grantedMinutes"`
	ExpiresAt      int64              `json:"expiresAt"` // epoch ms
	QuickGrade     *domain.QuickGrade `json:"quickGrade,omitempty"`
}

// GradeNotification is shown to the user once earn-minutes grading is done.
type GradeNotification struct {
	Category      domain.Category `json:"category"`
	Grade         int             `json:"grade"`
	EarnedMinutes float64         `json:"earnedMinutes"`
}

// RunFullPipeline transcribes and grades a submission and appends the
// result to the interview history. Nothing is written if either step fails.
func (p *Pipeline) RunFullPipeline(ctx context.Context, sub Submission) error {
	audio, err := provider.DecodeAudio(sub.Audio)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	settings, err := p.repo.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	in := fillFromSettings(sub, settings)

	transcript, err := p.transcribe(ctx, settings.TranscriptionKey, audio)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	result, err := p.grade(ctx, settings.GradingKey, GradeInput{
		Question: in.Question,
		Response: transcript,
		Resume:   in.Resume,
		Role:     in.Role,
	})
	if err != nil {
		return fmt.Errorf("grade: %w", err)
	}

	grading := result.Grading
	rec := &domain.InterviewRecord{
		Question:  in.Question,
		Response:  transcript,
		Grading:   &grading,
		Timestamp: p.now().UnixMilli(),
	}
	if err := p.repo.AppendInterview(ctx, rec); err != nil {
		return fmt.Errorf("append interview: %w", err)
	}

	p.logger.Info("Interview saved", "id", rec.ID, "grade", grading.Grade, "degraded", result.Degraded)
	return nil
}

// SubmitAnswer completes a challenge and issues a grant according to the
// configured grading mode. The detailed grading always continues in the
// background to populate the history.
func (p *Pipeline) SubmitAnswer(ctx context.Context, sub Submission) (SubmitResult, error) {
	if sub.Question == "" || sub.Audio == "" {
		return SubmitResult{}, fmt.Errorf("%w: question and audio are required", ErrInvalidPayload)
	}
	settings, err := p.repo.GetSettings(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load settings: %w", err)
	}

	var res SubmitResult
	switch settings.Mode() {
	case domain.ModeEarnMinutes:
		res, err = p.submitEarnMinutes(ctx, sub, settings)
	default:
		res, err = p.submitClassic(ctx, settings)
	}
	if err != nil {
		return SubmitResult{}, err
	}

	if p.cadence != nil {
		p.cadence.Reset()
	}
	p.spawnFullPipeline(fillFromSettings(sub, settings))
	return res, nil
}

func (p *Pipeline) submitClassic(ctx context.Context, settings *domain.Settings) (SubmitResult, error) {
	minutes := float64(settings.Cooldown())
	expiresAt, err := p.issueGrant(ctx, domain.ModeClassic, minutes)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		Mode:           domain.ModeClassic,
		GrantedMinutes: minutes,
		ExpiresAt:      expiresAt.UnixMilli(),
	}, nil
}

func (p *Pipeline) submitEarnMinutes(ctx context.Context, sub Submission, settings *domain.Settings) (SubmitResult, error) {
	audio, err := provider.DecodeAudio(sub.Audio)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	transcript, err := p.transcribe(ctx, settings.TranscriptionKey, audio)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("transcribe: %w", err)
	}
	qg, err := p.quickGrade(ctx, settings.GradingKey, QuickGradeInput{Question: sub.Question, Response: transcript})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("quick grade: %w", err)
	}

	minutes := settings.EarnMinutesThresholds.Minutes(qg.Category)
	expiresAt, err := p.issueGrant(ctx, domain.ModeEarnMinutes, minutes)
	if err != nil {
		return SubmitResult{}, err
	}

	if p.notifier != nil {
		note := GradeNotification{Category: qg.Category, Grade: qg.Grade, EarnedMinutes: minutes}
		if err := p.notifier.Publish(ctx, NotifyGrade, note); err != nil {
			p.logger.Warn("Failed to publish grade notification", "error", err)
		}
	}

	return SubmitResult{
		Mode:           domain.ModeEarnMinutes,
		GrantedMinutes: minutes,
		ExpiresAt:      expiresAt.UnixMilli(),
		QuickGrade:     &qg,
	}, nil
}

func (p *Pipeline) issueGrant(ctx context.Context, mode domain.GradingMode, minutes float64) (time.Time, error) {
	d := time.Duration(minutes * float64(time.Minute))
	expiresAt, err := p.grants.SetGrant(ctx, d, p.now())
	if err != nil {
		return time.Time{}, fmt.Errorf("set grant: %w", err)
	}
	metrics.RecordGrant(string(mode), minutes)
	p.logger.Info("Access granted", "mode", mode, "minutes", minutes, "expires_at", expiresAt)
	return expiresAt, nil
}

// SpawnFullPipeline schedules RunFullPipeline on the background executor.
func (p *Pipeline) SpawnFullPipeline(sub Submission) error {
	if p.background == nil {
		return fmt.Errorf("no background executor configured")
	}
	return p.background.Go("full_pipeline", func(ctx context.Context) error {
		return p.RunFullPipeline(ctx, sub)
	})
}

func (p *Pipeline) spawnFullPipeline(sub Submission) {
	if err := p.SpawnFullPipeline(sub); err != nil {
		p.logger.Warn("Could not schedule background grading", "error", err)
	}
}

func fillFromSettings(sub Submission, settings *domain.Settings) Submission {
	if sub.Resume == "" {
		sub.Resume = settings.ResumeText
	}
	if sub.Role == "" {
		sub.Role = settings.ResolvedRole()
	}
	return sub
}
