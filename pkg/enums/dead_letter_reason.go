package enums

// DeadLetterReason explains why an outbox row was parked on the dead-letter
// topic. It travels as the "dead_letter_reason" message attribute.
type DeadLetterReason string

const (
	DeadLetterMaxAttempts  DeadLetterReason = "max_attempts"
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
)

func (r DeadLetterReason) IsValid() bool {
	switch r {
	case DeadLetterMaxAttempts, DeadLetterNonRetryable:
		return true
	}
	return false
}
