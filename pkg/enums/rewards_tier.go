package enums

import "fmt"

// RewardsTier buckets a customer by lifetime points earned.
type RewardsTier string

const (
	RewardsTierBronze RewardsTier = "bronze"
	RewardsTierSilver RewardsTier = "silver"
	RewardsTierGold   RewardsTier = "gold"
)

var validRewardsTiers = []RewardsTier{
	RewardsTierBronze,
	RewardsTierSilver,
	RewardsTierGold,
}

// String implements fmt.Stringer.
func (r RewardsTier) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RewardsTier.
func (r RewardsTier) IsValid() bool {
	for _, candidate := range validRewardsTiers {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRewardsTier converts raw input into a RewardsTier.
func ParseRewardsTier(value string) (RewardsTier, error) {
	for _, candidate := range validRewardsTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rewards tier %q", value)
}
