package refs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PrefixServiceOrder    = "SO"
	PrefixFractionalOrder = "FO"
	PrefixTag             = "TAG"
)

// New returns a human readable reference of the form PREFIX-YYYYMMDD-XXXXXXXX
// where the suffix is eight upper-case hex characters from a random UUID.
// Collisions are possible and callers retry on unique violations.
func New(prefix string, now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), id[:8])
}
