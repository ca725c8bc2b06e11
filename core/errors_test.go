package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_Sentinels(t *testing.T) {
	cases := []struct {
		err      error
		textCode string
		status   int
	}{
		{ErrDeviceNotFound, ServiceErrorNotFound, http.StatusNotFound},
		{ErrUserNotFound, ServiceErrorNotFound, http.StatusNotFound},
		{ErrClaimCodeMismatch, ServiceErrorPermissionDenied, http.StatusForbidden},
		{ErrDeviceNotOwned, ServiceErrorPermissionDenied, http.StatusForbidden},
		{ErrDeviceExists, ServiceErrorAlreadyExists, http.StatusConflict},
		{ErrDeviceClaimed, ServiceErrorFailedPrecondition, http.StatusPreconditionFailed},
		{fmt.Errorf("sqlstore: claim: %w", ErrClaimCodeMismatch), ServiceErrorPermissionDenied, http.StatusForbidden},
	}
	for _, tc := range cases {
		mapped := serviceErrorMapper(tc.err)
		if mapped == nil {
			t.Fatalf("expected mapped error for %v", tc.err)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%v: expected text code %s, got %s", tc.err, tc.textCode, mapped.TextCode)
		}
		if mapped.Code != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, mapped.Code)
		}
	}
}

func TestServiceErrorMapper_KeepsRichErrors(t *testing.T) {
	source := goerrors.New("slow down", goerrors.CategoryRateLimit)
	mapped := serviceErrorMapper(source)
	if mapped.TextCode != ServiceErrorResourceExhausted {
		t.Fatalf("expected resource exhausted text code, got %s", mapped.TextCode)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", mapped.Code)
	}
}

func TestServiceErrorMapper_UnknownIsInternal(t *testing.T) {
	mapped := serviceErrorMapper(errors.New("disk on fire"))
	if mapped.TextCode != ServiceErrorInternal {
		t.Fatalf("expected internal text code, got %s", mapped.TextCode)
	}
	if serviceErrorMapper(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestInvalidArgumentErrorListsFields(t *testing.T) {
	err := invalidArgumentError(messageMissingArguments, "deviceId", "claimCode")
	fields, ok := err.Metadata["fields"].([]string)
	if !ok || len(fields) != 2 || fields[0] != "deviceId" {
		t.Fatalf("unexpected metadata: %#v", err.Metadata)
	}
	if err.Message != messageMissingArguments {
		t.Fatalf("unexpected message %q", err.Message)
	}
}

func TestIsClaimRejection(t *testing.T) {
	if !IsClaimRejection(ErrDeviceNotFound) || !IsClaimRejection(ErrClaimCodeMismatch) {
		t.Fatalf("expected store sentinels to be rejections")
	}
	if !IsClaimRejection(serviceErrorMapper(ErrClaimCodeMismatch)) {
		t.Fatalf("expected mapped mismatch to be a rejection")
	}
	if IsClaimRejection(errors.New("timeout")) || IsClaimRejection(nil) {
		t.Fatalf("expected infrastructure errors not to count")
	}
	if IsClaimRejection(unauthenticatedError(messageUnauthenticated)) {
		t.Fatalf("expected unauthenticated not to count")
	}
}
