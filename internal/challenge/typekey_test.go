package challenge

import (
	"testing"

	"github.com/playskrafl/backend/internal/models"
)

func TestDeriveTypeKeyGroupsMatchablePrefs(t *testing.T) {
	cases := []struct {
		name  string
		prefs models.ChallengePrefs
		want  string
	}{
		{"untimed default", models.ChallengePrefs{}, "d0:std:open"},
		{"timed fairplay newbag", models.ChallengePrefs{Duration: 15, Fairplay: true, NewBag: true}, "d15:new:fair"},
		{"fairplay only", models.ChallengePrefs{Fairplay: true}, "d0:std:fair"},
		{"newbag only", models.ChallengePrefs{NewBag: true}, "d0:new:open"},
	}

	for _, tc := range cases {
		if got := DeriveTypeKey(tc.prefs); got != tc.want {
			t.Errorf("%s: DeriveTypeKey = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDeriveTypeKeyClampsDuration(t *testing.T) {
	if got := DeriveTypeKey(models.ChallengePrefs{Duration: -5}); got != "d0:std:open" {
		t.Errorf("negative duration: got %q", got)
	}
	if got := DeriveTypeKey(models.ChallengePrefs{Duration: 200}); got != "d90:std:open" {
		t.Errorf("oversized duration: got %q", got)
	}
}

func TestManualFlagDoesNotSplitTypes(t *testing.T) {
	auto := DeriveTypeKey(models.ChallengePrefs{Duration: 25})
	manual := DeriveTypeKey(models.ChallengePrefs{Duration: 25, Manual: true})
	if auto != manual {
		t.Errorf("manual challenges should share the type key: %q vs %q", auto, manual)
	}
}
