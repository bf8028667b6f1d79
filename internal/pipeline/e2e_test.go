package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/preppal/internal/domain"
	"github.com/ashureev/preppal/internal/gate"
	"github.com/ashureev/preppal/internal/store"
)

func TestChallengeThenGrantAllowsNavigation(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "preppal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.SaveSettings(ctx, &domain.Settings{
		GatedSites:            []domain.GatedSite{{ID: "yt", HostPattern: "youtube.com", Enabled: true}},
		PracticeIntensity:     domain.IntensityMedium,
		TranscriptionKey:      "sk-openai",
		GradingKey:            "sk-ant",
		ResumeText:            "resume",
		JobRole:               "Backend Engineer",
		CooldownMinutes:       30,
		GradingMode:           domain.ModeClassic,
		EarnMinutesThresholds: domain.DefaultMinutesTable(),
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }

	grants := gate.NewGrantStore(db)
	cadence := gate.NewCadenceTracker()
	interceptor := gate.NewInterceptor(db, grants, cadence, "http://localhost:8787/interview", logger)
	interceptor.SetClock(clock)

	spawner := &queueSpawner{}
	p := New(Deps{
		Repo:        db,
		Transcriber: &fakeTranscriber{text: "answer"},
		Completer:   &fakeCompleter{replies: map[string]string{DefaultGradeModel: `{"grade":70,"feedback":"ok"}`}},
		Grants:      grants,
		Cadence:     cadence,
		Background:  spawner,
		Logger:      logger,
	})
	p.SetClock(clock)

	// Two earlier gated visits.
	cadence.ShouldChallenge(domain.IntensityMedium)
	cadence.ShouldChallenge(domain.IntensityMedium)

	const dest = "https://www.youtube.com/watch"
	d, err := interceptor.Evaluate(ctx, dest, gate.TopFrameID)
	require.NoError(t, err)
	require.Equal(t, gate.ActionIntercept, d.Action)
	assert.Equal(t, 1, d.Questions)
	assert.Contains(t, d.RedirectURL, "questions=1")

	res, err := p.SubmitAnswer(ctx, Submission{Question: "q", Audio: testAudio})
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), res.ExpiresAt)

	now = now.Add(29 * time.Minute)
	d, err = interceptor.Evaluate(ctx, dest, gate.TopFrameID)
	require.NoError(t, err)
	assert.Equal(t, gate.ActionAllow, d.Action)
	assert.Equal(t, gate.ReasonActiveGrant, d.Reason)

	spawner.RunAll(ctx)
	recs, err := db.ListInterviews(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 70, recs[0].Grading.Grade)
}
