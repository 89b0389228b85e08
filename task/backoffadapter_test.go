package task

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

func TestFromCenkalti_AdaptsNextBackOff(t *testing.T) {
	b := backoff.NewConstantBackOff(50 * time.Millisecond)
	s := FromCenkalti(b)

	if got := s.Delay(1, nil); got != 50*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 50ms", got)
	}
	if got := s.Delay(2, nil); got != 50*time.Millisecond {
		t.Errorf("Delay(2) = %v, want 50ms", got)
	}
}

func TestFromCenkalti_ResetsOnAttemptOne(t *testing.T) {
	b := backoff.NewConstantBackOff(10 * time.Millisecond)
	s := FromCenkalti(b)

	s.Delay(1, nil)
	s.Delay(2, nil)
	// A fresh call sequence starting again at attempt 1 must not carry
	// over any internal state from the previous Run call.
	if got := s.Delay(1, nil); got != 10*time.Millisecond {
		t.Errorf("Delay(1) after reset = %v, want 10ms", got)
	}
}
