package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// SharingTier is the disclosure level of an entry. Higher tiers reveal
// strictly more than lower ones.
type SharingTier int

const (
	TierPrivate SharingTier = iota
	TierMood
	TierSummary
	TierFull
)

var tierNames = [...]string{"private", "mood", "summary", "full"}

// Valid reports whether t is one of the four known tiers.
func (t SharingTier) Valid() bool {
	return t >= TierPrivate && t <= TierFull
}

func (t SharingTier) String() string {
	if !t.Valid() {
		return tierNames[TierPrivate]
	}
	return tierNames[t]
}

// LookupTier returns the tier named s. Matching ignores case and
// surrounding whitespace.
func LookupTier(s string) (SharingTier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range tierNames {
		if name == s {
			return SharingTier(i), true
		}
	}
	return TierPrivate, false
}

func (t SharingTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON never fails on unknown names; they decode as private.
func (t *SharingTier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = TierPrivate
		return nil
	}
	*t, _ = LookupTier(s)
	return nil
}

func (t SharingTier) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan coerces legacy or malformed stored values to private.
func (t *SharingTier) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = TierPrivate
	case string:
		*t, _ = LookupTier(v)
	case []byte:
		*t, _ = LookupTier(string(v))
	default:
		return fmt.Errorf("models: cannot scan %T into SharingTier", src)
	}
	return nil
}
