package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/civicpulse/backend/internal/models"
)

// ErrInvalidRequest marks caller bugs: missing description or coordinates
// outside their valid ranges. It is the only error Evaluate returns; every
// infrastructure failure resolves to an Admit instead.
var ErrInvalidRequest = errors.New("invalid dedup request")

// GeoIndex answers which open issues lie near a point. Implementations must
// exclude resolved/closed issues and must surface backend failures as errors;
// treating an outage as "no candidates" is a policy call that belongs to the
// gate, not the index.
type GeoIndex interface {
	FindNearbyOpen(ctx context.Context, lat, lng, radiusM float64, maxResults int) ([]models.NearbyIssue, error)
}

// Classifier produces the raw, untyped similarity response for one new
// description against an ordered candidate list. It never invents a verdict:
// on timeout or exhausted retries it returns an error.
type Classifier interface {
	Classify(ctx context.Context, description string, candidates []models.NearbyIssue) (string, error)
}

// Warning is the structured event emitted when the gate fails open.
type Warning struct {
	Stage  string `json:"stage"` // "geo" or "classify"
	Reason string `json:"reason"`
}

type Config struct {
	RadiusM       float64
	MaxCandidates int
}

// Decision is the only artifact the intake path consumes.
type Decision struct {
	Admit        bool
	DuplicateIDs []string
}

var admit = Decision{Admit: true}

// Gate decides whether a new report duplicates an existing nearby issue.
// Stateless per evaluation; Config is immutable after construction.
type Gate struct {
	Geo        GeoIndex
	Classifier Classifier
	Config     Config
	Logger     zerolog.Logger

	// OnWarning, when set, observes each fail-open event. Exactly one event
	// is emitted per degraded evaluation.
	OnWarning func(Warning)
}

// Evaluate runs GeoLookup -> Classify -> Parse -> Decide. All failures past
// input validation fail open: a degraded dedup subsystem must never block
// issue creation.
func (g *Gate) Evaluate(ctx context.Context, description string, lat, lng float64) (Decision, error) {
	if strings.TrimSpace(description) == "" {
		return Decision{}, fmt.Errorf("%w: description is required", ErrInvalidRequest)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Decision{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidRequest)
	}

	candidates, err := g.Geo.FindNearbyOpen(ctx, lat, lng, g.Config.RadiusM, g.Config.MaxCandidates)
	if err != nil {
		g.warn("geo", err)
		return admit, nil
	}
	if len(candidates) == 0 {
		return admit, nil
	}

	raw, err := g.Classifier.Classify(ctx, description, candidates)
	if err != nil {
		g.warn("classify", err)
		return admit, nil
	}

	// The id universe offered to the classifier and the one used to validate
	// its answer come from the same immutable slice.
	offered := make([]string, 0, len(candidates))
	for _, c := range candidates {
		offered = append(offered, c.ID)
	}

	verdict := ParseVerdict(raw, offered)
	if !verdict.Similar {
		return admit, nil
	}
	return Decision{DuplicateIDs: verdict.IDs}, nil
}

func (g *Gate) warn(stage string, err error) {
	w := Warning{Stage: stage, Reason: err.Error()}
	g.Logger.Warn().
		Str("stage", w.Stage).
		Str("reason", w.Reason).
		Msg("dedup gate degraded, admitting report")
	if g.OnWarning != nil {
		g.OnWarning(w)
	}
}
