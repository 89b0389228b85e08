package task

import "github.com/google/uuid"

// newCallID generates a correlation id attached to every structured
// log line the engine emits for one Run call, so multi-attempt
// retries can be grepped together in aggregated logs. It is
// deliberately not part of Metrics: the id is an ambient logging
// concern, not a result field callers should have to depend on.
func newCallID() string {
	return uuid.NewString()
}
