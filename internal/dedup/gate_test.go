package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/civicpulse/backend/internal/models"
)

type fakeGeo struct {
	issues []models.NearbyIssue
	err    error
}

func (f *fakeGeo) FindNearbyOpen(ctx context.Context, lat, lng, radiusM float64, max int) ([]models.NearbyIssue, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.issues) > max {
		return f.issues[:max], nil
	}
	return f.issues, nil
}

type fakeClassifier struct {
	response string
	err      error
	calls    int
}

func (f *fakeClassifier) Classify(ctx context.Context, description string, candidates []models.NearbyIssue) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newGate(geo GeoIndex, cls Classifier, warnings *[]Warning) *Gate {
	return &Gate{
		Geo:        geo,
		Classifier: cls,
		Config:     Config{RadiusM: 100, MaxCandidates: 25},
		Logger:     zerolog.Nop(),
		OnWarning: func(w Warning) {
			*warnings = append(*warnings, w)
		},
	}
}

func TestEvaluateInvalidInput(t *testing.T) {
	var warnings []Warning
	g := newGate(&fakeGeo{}, &fakeClassifier{}, &warnings)

	cases := []struct {
		name string
		desc string
		lat  float64
		lng  float64
	}{
		{"empty description", "   ", 12.9, 77.5},
		{"lat too high", "pothole", 91, 77.5},
		{"lat too low", "pothole", -91, 77.5},
		{"lng too high", "pothole", 12.9, 181},
		{"lng too low", "pothole", 12.9, -181},
	}
	for _, tc := range cases {
		_, err := g.Evaluate(context.Background(), tc.desc, tc.lat, tc.lng)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v", tc.name, err)
		}
	}
	if len(warnings) != 0 {
		t.Fatalf("invalid input must not fail open, got %d warnings", len(warnings))
	}
}

func TestEvaluateGeoFailureFailsOpen(t *testing.T) {
	var warnings []Warning
	cls := &fakeClassifier{}
	g := newGate(&fakeGeo{err: errors.New("connection refused")}, cls, &warnings)

	dec, err := g.Evaluate(context.Background(), "streetlight out", 12.9, 77.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Admit {
		t.Fatalf("expected admit on geo failure, got %+v", dec)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %d", len(warnings))
	}
	if warnings[0].Stage != "geo" {
		t.Fatalf("expected geo stage, got %q", warnings[0].Stage)
	}
	if cls.calls != 0 {
		t.Fatalf("classifier must not run after geo failure")
	}
}

func TestEvaluateNoCandidatesSkipsClassifier(t *testing.T) {
	var warnings []Warning
	cls := &fakeClassifier{}
	g := newGate(&fakeGeo{}, cls, &warnings)

	dec, err := g.Evaluate(context.Background(), "streetlight out", 12.9, 77.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Admit {
		t.Fatalf("expected admit with no candidates")
	}
	if cls.calls != 0 {
		t.Fatalf("expected no classifier invocation, got %d", cls.calls)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %d", len(warnings))
	}
}

func TestEvaluateClassifierFailureFailsOpen(t *testing.T) {
	var warnings []Warning
	geo := &fakeGeo{issues: []models.NearbyIssue{{ID: "12", Description: "big pothole"}}}
	g := newGate(geo, &fakeClassifier{err: errors.New("timeout")}, &warnings)

	dec, err := g.Evaluate(context.Background(), "pothole on main st", 12.9, 77.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Admit {
		t.Fatalf("expected admit on classifier failure")
	}
	if len(warnings) != 1 || warnings[0].Stage != "classify" {
		t.Fatalf("expected one classify warning, got %+v", warnings)
	}
}

func TestEvaluateSimilarRejects(t *testing.T) {
	var warnings []Warning
	geo := &fakeGeo{issues: []models.NearbyIssue{
		{ID: "12", Description: "big pothole"},
		{ID: "15", Description: "broken light"},
	}}
	g := newGate(geo, &fakeClassifier{response: "yes: 12"}, &warnings)

	dec, err := g.Evaluate(context.Background(), "pothole on main st", 12.9, 77.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Admit {
		t.Fatalf("expected reject, got admit")
	}
	if len(dec.DuplicateIDs) != 1 || dec.DuplicateIDs[0] != "12" {
		t.Fatalf("unexpected duplicate ids: %v", dec.DuplicateIDs)
	}
}

func TestEvaluateHallucinatedVerdictAdmits(t *testing.T) {
	var warnings []Warning
	geo := &fakeGeo{issues: []models.NearbyIssue{{ID: "12", Description: "big pothole"}}}
	g := newGate(geo, &fakeClassifier{response: "yes: 99"}, &warnings)

	dec, err := g.Evaluate(context.Background(), "pothole on main st", 12.9, 77.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Admit {
		t.Fatalf("expected admit when verdict references no offered id")
	}
	if len(warnings) != 0 {
		t.Fatalf("malformed verdicts are not warnings, got %+v", warnings)
	}
}

// Two submissions for the same spot that both run before either is persisted
// each see zero candidates and are both admitted. The race is inherent to a
// proximity check without read-your-own-write; the opt-in cell lock in the
// intake path is the guard for deployments that want one.
func TestEvaluateConcurrentSubmissionsBothAdmit(t *testing.T) {
	var mu sync.Mutex
	var warnings []Warning
	g := &Gate{
		Geo:        &fakeGeo{},
		Classifier: &fakeClassifier{},
		Config:     Config{RadiusM: 100, MaxCandidates: 25},
		Logger:     zerolog.Nop(),
		OnWarning: func(w Warning) {
			mu.Lock()
			warnings = append(warnings, w)
			mu.Unlock()
		},
	}

	var wg sync.WaitGroup
	decisions := make([]Decision, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dec, err := g.Evaluate(context.Background(), "water leak near park", 12.9001, 77.5001)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			decisions[i] = dec
		}(i)
	}
	wg.Wait()

	for i, dec := range decisions {
		if !dec.Admit {
			t.Fatalf("submission %d: expected admit, got %+v", i, dec)
		}
	}
}
