package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorChain(t *testing.T) {
	cause := errors.New("row not found")
	err := Wrap(CodeInviteNotFound, "invite lookup failed", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "invite lookup failed" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if GetCode(err) != CodeInviteNotFound {
		t.Fatalf("unexpected code: %s", GetCode(err))
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !IsCode(wrapped, CodeInviteNotFound) {
		t.Fatal("expected code through wrapping")
	}
}

func TestGetCodeUnknownForForeignError(t *testing.T) {
	if GetCode(errors.New("plain")) != CodeUnknown {
		t.Fatal("expected unknown code for non-domain error")
	}
	if GetCode(nil) != CodeUnknown {
		t.Fatal("expected unknown code for nil")
	}
}

func TestGetMetadata(t *testing.T) {
	err := WithMetadata(CodeUnitFull, "unit is at capacity", map[string]string{"UnitID": "unit-a"})
	if GetMetadata(err)["UnitID"] != "unit-a" {
		t.Fatalf("unexpected metadata: %v", GetMetadata(err))
	}
	if GetMetadata(errors.New("plain")) != nil {
		t.Fatal("expected nil metadata for non-domain error")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeInviteInvalidTarget, codes.InvalidArgument},
		{CodeGrantMismatch, codes.InvalidArgument},
		{CodeInviteExpired, codes.FailedPrecondition},
		{CodeInviteRevoked, codes.FailedPrecondition},
		{CodeInviteAlreadyRedeemed, codes.FailedPrecondition},
		{CodeUnitFull, codes.FailedPrecondition},
		{CodeNoCapacity, codes.FailedPrecondition},
		{CodeInviteNotFound, codes.NotFound},
		{CodeNotFound, codes.NotFound},
		{CodeContended, codes.Aborted},
		{CodeInviteCodeExhausted, codes.ResourceExhausted},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

func TestHandleError(t *testing.T) {
	if HandleError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	st, ok := status.FromError(HandleError(New(CodeUnitFull, "unit is at capacity")))
	if !ok || st.Code() != codes.FailedPrecondition {
		t.Fatalf("unexpected status: %v", st)
	}

	st, ok = status.FromError(HandleError(errors.New("sql: internal detail")))
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("unexpected status: %v", st)
	}
	if st.Message() == "sql: internal detail" {
		t.Fatal("expected internal details to be masked")
	}
}
