// Package sharing resolves how much of a journal entry a recipient may see
// and projects entries down to that level.
//
// The four tiers form a total order, private < mood < summary < full. The
// effective tier for a recipient is the minimum of the tier the journaler
// declared on the entry and the recipient's own preference cap. Anything
// missing or unrecognised resolves to private.
package sharing

import (
	"fmt"

	"mentorjournal/internal/models"
)

// Normalize maps out-of-range tiers to private.
func Normalize(t models.SharingTier) models.SharingTier {
	if !t.Valid() {
		return models.TierPrivate
	}
	return t
}

// ParseTier is the lenient parser used on stored or forwarded values.
func ParseTier(s string) models.SharingTier {
	t, _ := models.LookupTier(s)
	return t
}

// ParseTierStrict rejects anything that is not a tier name. Input
// validation uses this; everything past the boundary uses ParseTier.
func ParseTierStrict(s string) (models.SharingTier, error) {
	t, ok := models.LookupTier(s)
	if !ok {
		return models.TierPrivate, fmt.Errorf("sharing: unknown tier %q", s)
	}
	return t, nil
}

// Resolve returns min(declared, cap). A nil cap resolves to private.
func Resolve(declared models.SharingTier, cap *models.SharingTier) models.SharingTier {
	if cap == nil {
		return models.TierPrivate
	}
	return min(Normalize(declared), Normalize(*cap))
}

// ResolveRaw is Resolve over raw tier names; empty means absent.
func ResolveRaw(declared, cap string) models.SharingTier {
	c, ok := models.LookupTier(cap)
	if !ok {
		return models.TierPrivate
	}
	return Resolve(ParseTier(declared), &c)
}
