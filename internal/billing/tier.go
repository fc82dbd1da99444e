package billing

import (
	"database/sql/driver"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Tier is the service level a user is entitled to. The zero value is TierFree.
type Tier int

const (
	TierFree Tier = iota
	TierPremium
	TierPremiumPlus
)

// TopTier is granted to operators regardless of subscription state.
const TopTier = TierPremiumPlus

var tierNames = map[Tier]string{
	TierFree:        "free",
	TierPremium:     "premium",
	TierPremiumPlus: "premium_plus",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// ParseTier converts a stored tier name back into a Tier.
func ParseTier(s string) (Tier, error) {
	for tier, name := range tierNames {
		if name == s {
			return tier, nil
		}
	}
	return TierFree, errors.Newf("unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.Newf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the tier by name so the column stays readable.
func (t Tier) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, errors.Newf("invalid tier %d", int(t))
	}
	return t.String(), nil
}

func (t *Tier) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = TierFree
		return nil
	case string:
		return t.UnmarshalText([]byte(v))
	case []byte:
		return t.UnmarshalText(v)
	default:
		return errors.Newf("cannot scan %T into Tier", src)
	}
}
