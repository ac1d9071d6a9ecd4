package prompt

import (
	"strings"
	"testing"

	"offsecmentor/pkg/domain"
)

func TestSelectCoversEveryStageAndMode(t *testing.T) {
	stages := []domain.ArtifactStage{
		domain.StageAssessment,
		domain.StageRoadmap,
		domain.StageEnumeration,
		domain.StageReport,
	}
	modes := []domain.Mode{domain.ModeBeginner, domain.ModeOSCP, domain.ModeRedTeam}

	seen := make(map[string]bool)
	for _, stage := range stages {
		for _, mode := range modes {
			got := Select(stage, mode)
			if got == "" {
				t.Fatalf("Select(%s, %s) returned empty prompt", stage, mode)
			}
			if !strings.Contains(got, "LEARNING MODE:") {
				t.Fatalf("Select(%s, %s) missing mode suffix", stage, mode)
			}
			if seen[got] {
				t.Fatalf("Select(%s, %s) collides with another stage/mode output", stage, mode)
			}
			seen[got] = true
		}
	}
	if len(seen) != 12 {
		t.Fatalf("expected 12 distinct prompts, got %d", len(seen))
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	a := Select(domain.StageRoadmap, domain.ModeOSCP)
	b := Select(domain.StageRoadmap, domain.ModeOSCP)
	if a != b {
		t.Fatalf("Select returned different output for identical arguments")
	}
}

func TestSelectFallsBackOnUnknownInput(t *testing.T) {
	got := Select(domain.ArtifactStage("bogus"), domain.Mode("bogus"))
	if !strings.Contains(got, "assess the learner's current knowledge level") {
		t.Fatalf("unknown stage should fall back to assessment template")
	}
	if !strings.Contains(got, "LEARNING MODE: Beginner") {
		t.Fatalf("unknown mode should fall back to beginner suffix")
	}
}
