package challenge

import (
	"fmt"

	"github.com/playskrafl/backend/internal/models"
)

// NormalizePrefs clamps challenge preferences to the supported ranges.
// Duration is minutes per player; 0 means untimed.
func NormalizePrefs(p models.ChallengePrefs) models.ChallengePrefs {
	if p.Duration < 0 {
		p.Duration = 0
	} else if p.Duration > 90 {
		p.Duration = 90
	}
	return p
}

// DeriveTypeKey maps challenge preferences to the key that groups
// challenges matchable against each other: duration class, bag version
// and the fairplay flag. Manual-move challenges share the key of their
// automatic counterpart; the manual flag only affects game play.
func DeriveTypeKey(p models.ChallengePrefs) string {
	p = NormalizePrefs(p)

	bag := "std"
	if p.NewBag {
		bag = "new"
	}
	fp := "open"
	if p.Fairplay {
		fp = "fair"
	}

	return fmt.Sprintf("d%d:%s:%s", p.Duration, bag, fp)
}
