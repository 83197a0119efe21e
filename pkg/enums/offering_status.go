package enums

import "fmt"

// OfferingStatus tracks the sale window of a fractional offering.
type OfferingStatus string

const (
	OfferingStatusDraft   OfferingStatus = "draft"
	OfferingStatusLive    OfferingStatus = "live"
	OfferingStatusSoldOut OfferingStatus = "sold_out"
	OfferingStatusClosed  OfferingStatus = "closed"
)

var validOfferingStatuses = []OfferingStatus{
	OfferingStatusDraft,
	OfferingStatusLive,
	OfferingStatusSoldOut,
	OfferingStatusClosed,
}

// String implements fmt.Stringer.
func (o OfferingStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferingStatus.
func (o OfferingStatus) IsValid() bool {
	for _, candidate := range validOfferingStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOfferingStatus converts raw input into a OfferingStatus.
func ParseOfferingStatus(value string) (OfferingStatus, error) {
	for _, candidate := range validOfferingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offering status %q", value)
}
