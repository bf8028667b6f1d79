package pipeline

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/ashureev/preppal/internal/domain"
	"github.com/ashureev/preppal/internal/worker"
)

var testAudio = "data:audio/webm;base64," + base64.StdEncoding.EncodeToString([]byte("webm"))

type fakeRepo struct {
	mu       sync.Mutex
	settings domain.Settings
	custom   []string
	records  []domain.InterviewRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{settings: domain.Settings{
		GatedSites:            domain.DefaultGatedSites(),
		PracticeIntensity:     domain.IntensityMedium,
		TranscriptionKey:      "sk-openai",
		GradingKey:            "sk-ant",
		ResumeText:            "Led the payments migration.",
		JobRole:               "Backend Engineer",
		CooldownMinutes:       30,
		GradingMode:           domain.ModeClassic,
		EarnMinutesThresholds: domain.DefaultMinutesTable(),
	}}
}

func (r *fakeRepo) GetSettings(_ context.Context) (*domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.settings
	return &s, nil
}

func (r *fakeRepo) GetCustomQuestions(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.custom...), nil
}

func (r *fakeRepo) SetCustomQuestions(_ context.Context, qs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = append([]string(nil), qs...)
	return nil
}

func (r *fakeRepo) AppendInterview(_ context.Context, rec *domain.InterviewRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = "rec"
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeRepo) Records() []domain.InterviewRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.InterviewRecord(nil), r.records...)
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func (f *fakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCompleter answers by model name.
type fakeCompleter struct {
	replies map[string]string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, apiKey, model string, _ int, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.replies[model], nil
}

type fakeGrants struct {
	durations []time.Duration
}

func (f *fakeGrants) SetGrant(_ context.Context, d time.Duration, now time.Time) (time.Time, error) {
	f.durations = append(f.durations, d)
	return now.Add(d), nil
}

type fakeCadence struct{ resets int }

func (f *fakeCadence) Reset() { f.resets++ }

type published struct {
	kind string
	data any
}

type fakeNotifier struct{ sent []published }

func (f *fakeNotifier) Publish(_ context.Context, kind string, data any) error {
	f.sent = append(f.sent, published{kind, data})
	return nil
}

// queueSpawner holds tasks until the test runs them.
type queueSpawner struct {
	tasks []worker.Task
}

func (q *queueSpawner) Go(_ string, task worker.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queueSpawner) RunAll(ctx context.Context) []error {
	var errs []error
	for _, t := range q.tasks {
		errs = append(errs, t(ctx))
	}
	q.tasks = nil
	return errs
}

type harness struct {
	p           *Pipeline
	repo        *fakeRepo
	transcriber *fakeTranscriber
	completer   *fakeCompleter
	grants      *fakeGrants
	cadence     *fakeCadence
	notifier    *fakeNotifier
	spawner     *queueSpawner
	now         time.Time
}

func newHarness() *harness {
	h := &harness{
		repo:        newFakeRepo(),
		transcriber: &fakeTranscriber{text: "I migrated payments with zero downtime."},
		completer:   &fakeCompleter{replies: map[string]string{}},
		grants:      &fakeGrants{},
		cadence:     &fakeCadence{},
		notifier:    &fakeNotifier{},
		spawner:     &queueSpawner{},
		now:         time.UnixMilli(1_700_000_000_000),
	}
	h.p = New(Deps{
		Repo:        h.repo,
		Transcriber: h.transcriber,
		Completer:   h.completer,
		Grants:      h.grants,
		Cadence:     h.cadence,
		Notifier:    h.notifier,
		Background:  h.spawner,
		Models:      Models{Grade: "sonnet", QuickGrade: "haiku", Questions: "haiku-q"},
	})
	h.p.SetClock(func() time.Time { return h.now })
	return h
}
