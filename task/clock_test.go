package task

import (
	"testing"
	"time"
)

func TestDefaultNow_Substitutable(t *testing.T) {
	fixed := time.Date(2021, time.March, 14, 9, 26, 53, 0, time.UTC)

	orig := defaultNow
	defaultNow = func() time.Time { return fixed }
	defer func() { defaultNow = orig }()

	e := newTypedError(CodeUnknown, "boom", false)
	if !e.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, fixed)
	}
}
