package enums

import "fmt"

// ServiceOrderStatus tracks the lifecycle of a Service Hub order.
type ServiceOrderStatus string

const (
	ServiceOrderStatusPending    ServiceOrderStatus = "pending"
	ServiceOrderStatusInProgress ServiceOrderStatus = "in_progress"
	ServiceOrderStatusDelivered  ServiceOrderStatus = "delivered"
	ServiceOrderStatusCompleted  ServiceOrderStatus = "completed"
	ServiceOrderStatusCancelled  ServiceOrderStatus = "cancelled"
)

var validServiceOrderStatuses = []ServiceOrderStatus{
	ServiceOrderStatusPending,
	ServiceOrderStatusInProgress,
	ServiceOrderStatusDelivered,
	ServiceOrderStatusCompleted,
	ServiceOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s ServiceOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ServiceOrderStatus.
func (s ServiceOrderStatus) IsValid() bool {
	for _, candidate := range validServiceOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseServiceOrderStatus converts raw input into a ServiceOrderStatus.
func ParseServiceOrderStatus(value string) (ServiceOrderStatus, error) {
	for _, candidate := range validServiceOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service order status %q", value)
}

// IsTerminal reports whether no further transitions are possible.
func (s ServiceOrderStatus) IsTerminal() bool {
	return s == ServiceOrderStatusCompleted || s == ServiceOrderStatusCancelled
}

// ServiceOrderStatuses lists every status in lifecycle order.
func ServiceOrderStatuses() []ServiceOrderStatus {
	return append([]ServiceOrderStatus(nil), validServiceOrderStatuses...)
}
