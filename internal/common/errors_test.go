package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{ErrInvalidInput("bad id"), KindInvalidInput},
		{ErrNotFound("job %s", "x"), KindNotFound},
		{ErrConflict("already terminal"), KindConflict},
		{ErrTransient("backend 503"), KindTransient},
		{ErrFatal("journal disk full"), KindFatal},
		{errors.New("plain"), KindFatal},
		{fmt.Errorf("wrapped: %w", ErrNotFound("run")), KindNotFound},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestWrapErrorUnwraps(t *testing.T) {
	inner := errors.New("connection refused")
	err := WrapError(KindTransient, inner, "dense backend unreachable")
	if !errors.Is(err, inner) {
		t.Error("wrapped error lost the cause")
	}
	if !IsKind(err, KindTransient) {
		t.Error("wrapped error lost the kind")
	}
}
