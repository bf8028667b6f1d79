// Package pipeline implements the challenge flow: transcription, grading,
// grant computation and the background history write.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/preppal/internal/domain"
	"github.com/ashureev/preppal/internal/metrics"
	"github.com/ashureev/preppal/internal/provider"
	"github.com/ashureev/preppal/internal/worker"
)

// ErrInvalidPayload marks input that cannot be processed as given.
var ErrInvalidPayload = errors.New("invalid payload")

// fallbackGrade is used when the detailed reply has no usable verdict.
const fallbackGrade = 50

const (
	DefaultGradeModel      = "claude-sonnet-4-5"
	DefaultQuickGradeModel = "claude-haiku-4-5"

	gradeMaxTokens      = 2000
	quickGradeMaxTokens = 500
	questionsMaxTokens  = 1000
)

// Notification types published to foreground surfaces.
const NotifyGrade = "showGradeNotification"

// Transcriber converts audio to text using the given credential.
type Transcriber interface {
	Transcribe(ctx context.Context, apiKey string, audio []byte) (string, error)
}

// Completer sends a single-turn prompt to the grading provider.
type Completer interface {
	Complete(ctx context.Context, apiKey, model string, maxTokens int, prompt string) (string, error)
}

// Repository is the persistence the pipeline needs.
type Repository interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
	GetCustomQuestions(ctx context.Context) ([]string, error)
	SetCustomQuestions(ctx context.Context, questions []string) error
	AppendInterview(ctx context.Context, rec *domain.InterviewRecord) error
}

// Granter stores access grants.
type Granter interface {
	SetGrant(ctx context.Context, d time.Duration, now time.Time) (time.Time, error)
}

// Resetter zeroes the visit counter once a challenge is completed.
type Resetter interface {
	Reset()
}

// Notifier pushes a message to foreground surfaces.
type Notifier interface {
	Publish(ctx context.Context, kind string, data any) error
}

// Spawner runs fire-and-forget work.
type Spawner interface {
	Go(name string, task worker.Task) error
}

// Models selects the grading provider models per call.
type Models struct {
	Grade      string
	QuickGrade string
	Questions  string
}

// Deps wires a Pipeline.
type Deps struct {
	Repo        Repository
	Transcriber Transcriber
	Completer   Completer
	Grants      Granter
	Cadence     Resetter
	Notifier    Notifier
	Background  Spawner
	Models      Models
	Logger      *slog.Logger
}

// Pipeline runs challenge requests.
type Pipeline struct {
	repo        Repository
	transcriber Transcriber
	completer   Completer
	grants      Granter
	cadence     Resetter
	notifier    Notifier
	background  Spawner
	models      Models
	logger      *slog.Logger
	now         func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// New creates a pipeline.
func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Models.Grade == "" {
		d.Models.Grade = DefaultGradeModel
	}
	if d.Models.QuickGrade == "" {
		d.Models.QuickGrade = DefaultQuickGradeModel
	}
	if d.Models.Questions == "" {
		d.Models.Questions = d.Models.QuickGrade
	}
	return &Pipeline{
		repo:        d.Repo,
		transcriber: d.Transcriber,
		completer:   d.Completer,
		grants:      d.Grants,
		cadence:     d.Cadence,
		notifier:    d.Notifier,
		background:  d.Background,
		models:      d.Models,
		logger:      d.Logger,
		now:         time.Now,
		rand:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

// SetClock replaces the time source.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// SetRand replaces the random source used to draw questions.
func (p *Pipeline) SetRand(r *rand.Rand) {
	p.randMu.Lock()
	defer p.randMu.Unlock()
	p.rand = r
}

// Transcribe decodes an audio payload (data URL or base64) and returns its
// transcript.
func (p *Pipeline) Transcribe(ctx context.Context, audioPayload string) (string, error) {
	audio, err := provider.DecodeAudio(audioPayload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	settings, err := p.repo.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	return p.transcribe(ctx, settings.TranscriptionKey, audio)
}

func (p *Pipeline) transcribe(ctx context.Context, apiKey string, audio []byte) (string, error) {
	text, err := p.transcriber.Transcribe(ctx, apiKey, audio)
	recordStep("transcribe", err)
	if err != nil {
		return "", err
	}
	return text, nil
}

// GradeInput is the detailed grading request.
type GradeInput struct {
	Question string `json:"question"`
	Response string `json:"response"`
	Resume   string `json:"resume"`
	Role     string `json:"jobRole"`
}

// GradeResult is a detailed verdict. Degraded is set when the reply held no
// parseable verdict and the fallback was used.
type GradeResult struct {
	Grading  domain.Grading `json:"grading"`
	Degraded bool           `json:"degraded"`
}

// wireGrading accepts fractional grades from the provider.
type wireGrading struct {
	Grade        float64  `json:"grade"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Grade asks the grading provider for a detailed verdict.
func (p *Pipeline) Grade(ctx context.Context, in GradeInput) (GradeResult, error) {
	settings, err := p.repo.GetSettings(ctx)
	if err != nil {
		return GradeResult{}, fmt.Errorf("load settings: %w", err)
	}
	return p.grade(ctx, settings.GradingKey, in)
}

func (p *Pipeline) grade(ctx context.Context, apiKey string, in GradeInput) (GradeResult, error) {
	reply, err := p.completer.Complete(ctx, apiKey, p.models.Grade, gradeMaxTokens, gradePrompt(in))
	if err != nil {
		recordStep("grade", err)
		return GradeResult{}, err
	}

	var w wireGrading
	raw, found := provider.ExtractObject(reply)
	if !found || json.Unmarshal([]byte(raw), &w) != nil {
		p.logger.Warn("Grading reply had no parseable verdict, using fallback", "reply_len", len(reply))
		metrics.RecordStep("grade", "degraded")
		return GradeResult{
			Grading:  domain.Grading{Grade: fallbackGrade, Feedback: reply}.Normalize(),
			Degraded: true,
		}, nil
	}

	metrics.RecordStep("grade", "ok")
	return GradeResult{Grading: domain.Grading{
		Grade:        roundGrade(w.Grade),
		Feedback:     w.Feedback,
		Strengths:    w.Strengths,
		Improvements: w.Improvements,
	}.Normalize()}, nil
}

// QuickGradeInput is the short grading request.
type QuickGradeInput struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

type wireQuickGrade struct {
	Grade    float64 `json:"grade"`
	Category string  `json:"category"`
	Feedback string  `json:"feedback"`
}

// QuickGrade asks for a short verdict with a category.
func (p *Pipeline) QuickGrade(ctx context.Context, in QuickGradeInput) (domain.QuickGrade, error) {
	settings, err := p.repo.GetSettings(ctx)
	if err != nil {
		return domain.QuickGrade{}, fmt.Errorf("load settings: %w", err)
	}
	return p.quickGrade(ctx, settings.GradingKey, in)
}

func (p *Pipeline) quickGrade(ctx context.Context, apiKey string, in QuickGradeInput) (domain.QuickGrade, error) {
	reply, err := p.completer.Complete(ctx, apiKey, p.models.QuickGrade, quickGradeMaxTokens, quickGradePrompt(in))
	if err != nil {
		recordStep("quick_grade", err)
		return domain.QuickGrade{}, err
	}

	raw, found := provider.ExtractObject(reply)
	if !found {
		err := &provider.ParseError{Msg: "could not parse grade from response"}
		recordStep("quick_grade", err)
		return domain.QuickGrade{}, err
	}
	var w wireQuickGrade
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		perr := &provider.ParseError{Msg: "decode quick grade", Err: err}
		recordStep("quick_grade", perr)
		return domain.QuickGrade{}, perr
	}

	metrics.RecordStep("quick_grade", "ok")
	return domain.QuickGrade{
		Grade:    roundGrade(w.Grade),
		Category: domain.Category(strings.ToLower(strings.TrimSpace(w.Category))),
		Feedback: w.Feedback,
	}, nil
}

// GenerateQuestions asks for questions tailored to resume and stores them
// as the personalized set. An empty resume uses the stored one.
func (p *Pipeline) GenerateQuestions(ctx context.Context, resume string) ([]string, error) {
	settings, err := p.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if strings.TrimSpace(resume) == "" {
		resume = settings.ResumeText
	}
	if strings.TrimSpace(resume) == "" {
		return nil, fmt.Errorf("%w: resume text is empty", ErrInvalidPayload)
	}

	reply, err := p.completer.Complete(ctx, settings.GradingKey, p.models.Questions, questionsMaxTokens, questionsPrompt(resume))
	if err != nil {
		recordStep("generate_questions", err)
		return nil, err
	}

	questions, err := parseQuestions(reply)
	if err != nil {
		recordStep("generate_questions", err)
		return nil, err
	}
	if err := p.repo.SetCustomQuestions(ctx, questions); err != nil {
		return nil, fmt.Errorf("store custom questions: %w", err)
	}

	metrics.RecordStep("generate_questions", "ok")
	p.logger.Info("Personalized questions stored", "count", len(questions))
	return questions, nil
}

func parseQuestions(reply string) ([]string, error) {
	raw, found := provider.ExtractArray(reply)
	if !found {
		return nil, &provider.ParseError{Msg: "could not parse questions from response"}
	}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &provider.ParseError{Msg: "decode questions", Err: err}
	}

	questions := make([]string, 0, GeneratedQuestionCount)
	for _, item := range items {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		questions = append(questions, strings.TrimSpace(s))
		if len(questions) == GeneratedQuestionCount {
			break
		}
	}
	if len(questions) == 0 {
		return nil, &provider.ParseError{Msg: "no questions in response"}
	}
	return questions, nil
}

func roundGrade(g float64) int {
	if math.IsNaN(g) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, g))))
}

func recordStep(step string, err error) {
	if err == nil {
		metrics.RecordStep(step, "ok")
		return
	}
	metrics.RecordStep(step, Reason(err))
}
