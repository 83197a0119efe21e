package models

import "github.com/google/uuid"

// assignID fills a zero primary key so inserts do not depend on
// database-side uuid generation.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
