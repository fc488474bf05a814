// Package plan holds the static subscription tier table and the quota
// gate. The gate is a pure function: the usage count comes from the
// store's count-since query and is supplied by the caller, so two
// concurrent requests at the limit can both pass. The quota is soft;
// a deployment that needs hard enforcement must wrap the count and the
// write in one store transaction.
package plan

import (
	"time"

	"github.com/provagen/provagen/internal/model"
)

// Tier is a subscription level governing Limits.
type Tier string

const (
	TierFree      Tier = "free"
	TierProfessor Tier = "professor"
	TierExpert    Tier = "expert"
)

// Unlimited is the sentinel for an effectively unlimited monthly quota.
const Unlimited = 9999

// Limits is the static configuration of one tier.
type Limits struct {
	Label                 string
	MaxDocumentsPerPeriod int
	AllowsOCRCorrection   bool
	// Priority is a scheduling hint for the model call; not enforced here.
	Priority string
}

var limits = map[Tier]Limits{
	TierFree:      {Label: "Visitante", MaxDocumentsPerPeriod: 1, AllowsOCRCorrection: false, Priority: "low"},
	TierProfessor: {Label: "Professor", MaxDocumentsPerPeriod: 20, AllowsOCRCorrection: true, Priority: "standard"},
	TierExpert:    {Label: "Expert", MaxDocumentsPerPeriod: Unlimited, AllowsOCRCorrection: true, Priority: "high"},
}

// Resolve maps a raw tier name to a known Tier, defaulting to the most
// restrictive tier when the name is unknown or empty.
func Resolve(name string) Tier {
	t := Tier(name)
	if _, ok := limits[t]; !ok {
		return TierFree
	}
	return t
}

// ForTier returns the limits of a tier.
func ForTier(t Tier) Limits {
	l, ok := limits[t]
	if !ok {
		return limits[TierFree]
	}
	return l
}

// CheckQuota returns a QuotaExceededError when usage has reached the
// tier's monthly document limit, nil otherwise. It performs no I/O.
func CheckQuota(t Tier, usage int) error {
	l := ForTier(t)
	if usage >= l.MaxDocumentsPerPeriod {
		return &model.QuotaExceededError{Label: l.Label, Limit: l.MaxDocumentsPerPeriod}
	}
	return nil
}

// PeriodStart returns the first instant of the calendar month containing
// now, in now's location. Documents created at or after this boundary
// count against the current period's quota.
func PeriodStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
