package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/codinglabe/believe-app/pkg/enums"
)

// Deliverable references an item the seller hands over on delivery. Binary
// content lives in external storage; only its URL and metadata are kept.
type Deliverable struct {
	Name        string                `json:"name" validate:"required,max=255"`
	URL         string                `json:"url" validate:"required,url,max=2048"`
	Description string                `json:"description,omitempty" validate:"max=2000"`
	Type        enums.DeliverableType `json:"type" validate:"required,enum"`
}

// Deliverables is stored as a JSON array on the order row.
type Deliverables []Deliverable

func (d Deliverables) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal([]Deliverable(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *Deliverables) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("deliverables: unsupported scan type %T", value)
	}
	if raw == "" || raw == "null" {
		*d = nil
		return nil
	}
	var out []Deliverable
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fmt.Errorf("deliverables: %w", err)
	}
	*d = out
	return nil
}
