package domain

import (
	"errors"
	"testing"
)

func TestOpErrorWrapUnwrap(t *testing.T) {
	root := errors.New("root")
	err := &OpError{
		Op:   "aggregate.batch",
		Kind: KindProtocol,
		Path: "http://x/view/submissionList",
		Err:  root,
	}

	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is to match cause")
	}

	var got *OpError
	if !errors.As(err, &got) {
		t.Fatalf("expected errors.As to match OpError")
	}
	if got.Kind != KindProtocol {
		t.Fatalf("expected kind %s", KindProtocol)
	}
	want := "aggregate.batch: protocol (path=http://x/view/submissionList): root"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestIsKind(t *testing.T) {
	if !IsKind(AuthError("central.session", "", nil), KindAuthentication) {
		t.Fatalf("expected authentication kind")
	}
	if !errors.Is(AuthError("central.session", "", nil), ErrUnauthorized) {
		t.Fatalf("expected default cause ErrUnauthorized")
	}
	if !IsKind(ErrCancelled, KindCancelled) {
		t.Fatalf("bare ErrCancelled should classify as cancelled")
	}
	if IsKind(errors.New("x"), KindNetwork) {
		t.Fatalf("plain error must not match a kind")
	}
}

func TestKindOf(t *testing.T) {
	if k := KindOf(CancelledError("pull.batch")); k != KindCancelled {
		t.Fatalf("got %s", k)
	}
	if k := KindOf(errors.New("boom")); k != KindExecution {
		t.Fatalf("got %s", k)
	}
}
