package enums

import "fmt"

// DeliverableType classifies an item attached on delivery.
type DeliverableType string

const (
	DeliverableTypeFile     DeliverableType = "file"
	DeliverableTypeLink     DeliverableType = "link"
	DeliverableTypeImage    DeliverableType = "image"
	DeliverableTypeVideo    DeliverableType = "video"
	DeliverableTypeDocument DeliverableType = "document"
)

var validDeliverableTypes = []DeliverableType{
	DeliverableTypeFile,
	DeliverableTypeLink,
	DeliverableTypeImage,
	DeliverableTypeVideo,
	DeliverableTypeDocument,
}

// String implements fmt.Stringer.
func (d DeliverableType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliverableType.
func (d DeliverableType) IsValid() bool {
	for _, candidate := range validDeliverableTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliverableType converts raw input into a DeliverableType.
func ParseDeliverableType(value string) (DeliverableType, error) {
	for _, candidate := range validDeliverableTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deliverable type %q", value)
}
