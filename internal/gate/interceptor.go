package gate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ashureev/preppal/internal/domain"
	"github.com/ashureev/preppal/internal/metrics"
)

// TopFrameID identifies the main frame of a tab.
const TopFrameID = 0

// Action is the outcome of a navigation evaluation.
type Action string

const (
	ActionAllow     Action = "allow"
	ActionIntercept Action = "intercept"
)

// Reason explains why a navigation was allowed or intercepted.
type Reason string

const (
	ReasonSubframe        Reason = "subframe"
	ReasonInvalidURL      Reason = "invalid_url"
	ReasonActiveGrant     Reason = "active_grant"
	ReasonNotGated        Reason = "not_gated"
	ReasonSetupIncomplete Reason = "setup_incomplete"
	ReasonCadence         Reason = "cadence"
	ReasonChallenge       Reason = "challenge"
)

// Decision is the interceptor's verdict for one navigation.
type Decision struct {
	Action      Action `json:"action"`
	Reason      Reason `json:"reason"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Questions   int    `json:"questions,omitempty"`
}

// SettingsSource loads the current settings document.
type SettingsSource interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
}

// Interceptor evaluates main-frame navigations.
type Interceptor struct {
	settings     SettingsSource
	grants       *GrantStore
	cadence      *CadenceTracker
	challengeURL string
	now          func() time.Time
	logger       *slog.Logger

	// mu keeps each evaluation a single step, matching the one-thread
	// model the cadence policy assumes.
	mu sync.Mutex
}

// NewInterceptor creates an interceptor that redirects to challengeURL.
func NewInterceptor(settings SettingsSource, grants *GrantStore, cadence *CadenceTracker, challengeURL string, logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		settings:     settings,
		grants:       grants,
		cadence:      cadence,
		challengeURL: challengeURL,
		now:          time.Now,
		logger:       logger,
	}
}

// SetClock replaces the time source.
func (i *Interceptor) SetClock(now func() time.Time) {
	i.now = now
}

// Evaluate decides whether a navigation to rawURL in frameID is intercepted.
// Checks run in order and stop at the first allow: active grant, gated
// site match, setup completeness, visit cadence.
func (i *Interceptor) Evaluate(ctx context.Context, rawURL string, frameID int) (Decision, error) {
	d, err := i.evaluate(ctx, rawURL, frameID)
	if err != nil {
		return Decision{}, err
	}
	metrics.RecordDecision(string(d.Action), string(d.Reason))
	return d, nil
}

func (i *Interceptor) evaluate(ctx context.Context, rawURL string, frameID int) (Decision, error) {
	if frameID != TopFrameID {
		return allow(ReasonSubframe), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return allow(ReasonInvalidURL), nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	active, err := i.grants.HasActiveGrant(ctx, now)
	if err != nil {
		return Decision{}, err
	}
	if active {
		return allow(ReasonActiveGrant), nil
	}
	if cleared, err := i.grants.ClearIfExpired(ctx, now); err != nil {
		i.logger.Warn("Failed to clear expired grant", "error", err)
	} else if cleared {
		i.logger.Info("Expired grant cleared during navigation")
	}

	settings, err := i.settings.GetSettings(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("load settings: %w", err)
	}

	site, ok := MatchSite(u.Hostname(), settings.GatedSites, false)
	if !ok {
		return allow(ReasonNotGated), nil
	}

	if !settings.SetupComplete() {
		i.logger.Debug("Setup incomplete, not blocking", "host", u.Hostname())
		return allow(ReasonSetupIncomplete), nil
	}

	verdict := i.cadence.ShouldChallenge(settings.PracticeIntensity)
	if !verdict.Trigger {
		return allow(ReasonCadence), nil
	}

	redirect, err := ChallengeURL(i.challengeURL, rawURL, verdict.QuestionCount)
	if err != nil {
		return Decision{}, err
	}

	i.logger.Info("Navigation intercepted",
		"host", u.Hostname(),
		"site_id", site.ID,
		"questions", verdict.QuestionCount)

	return Decision{
		Action:      ActionIntercept,
		Reason:      ReasonChallenge,
		RedirectURL: redirect,
		Questions:   verdict.QuestionCount,
	}, nil
}

func allow(reason Reason) Decision {
	return Decision{Action: ActionAllow, Reason: reason}
}

// ChallengeURL builds the challenge surface URL carrying the original
// destination and the number of questions to ask.
func ChallengeURL(base, destination string, questions int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse challenge url: %w", err)
	}
	q := u.Query()
	q.Set("redirect", destination)
	q.Set("questions", strconv.Itoa(questions))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
