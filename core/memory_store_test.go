package core

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_ClaimIsConditional(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, store, "dev-42", "ABC123")

	outcome, err := store.ClaimDevice(ctx, ClaimDeviceInput{DeviceID: "dev-42", ClaimCode: "ABC123", OwnerID: "user-7"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if outcome.Device.OwnerID != "user-7" || outcome.User.CurrentDeviceID != "dev-42" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	_, err = store.ClaimDevice(ctx, ClaimDeviceInput{DeviceID: "dev-42", ClaimCode: "ABC123", OwnerID: "user-8"})
	if !errors.Is(err, ErrClaimCodeMismatch) {
		t.Fatalf("expected mismatch on replay, got %v", err)
	}
	_, err = store.ClaimDevice(ctx, ClaimDeviceInput{DeviceID: "dev-x", ClaimCode: "ABC123", OwnerID: "user-8"})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, store, "dev-42", "ABC123")
	outcome, err := store.ClaimDevice(ctx, ClaimDeviceInput{DeviceID: "dev-42", ClaimCode: "ABC123", OwnerID: "user-7"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	original := *outcome.Device.ClaimedAt
	*outcome.Device.ClaimedAt = original.AddDate(1, 0, 0)

	stored, _ := store.GetDevice(ctx, "dev-42")
	if !stored.ClaimedAt.Equal(original) {
		t.Fatalf("expected stored claimed_at to be isolated from callers")
	}
}

func TestMemoryStore_ReleaseKeepsOtherCurrentDevice(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, store, "dev-1", "CODE01")
	seedDevice(t, store, "dev-2", "CODE02")
	for _, pair := range [][2]string{{"dev-1", "CODE01"}, {"dev-2", "CODE02"}} {
		if _, err := store.ClaimDevice(ctx, ClaimDeviceInput{DeviceID: pair[0], ClaimCode: pair[1], OwnerID: "user-7"}); err != nil {
			t.Fatalf("claim %s: %v", pair[0], err)
		}
	}
	if _, err := store.ReleaseDevice(ctx, ReleaseDeviceInput{DeviceID: "dev-1", OwnerID: "user-7", NextClaimCode: "NEXT01"}); err != nil {
		t.Fatalf("release: %v", err)
	}
	user, _ := store.GetUser(ctx, "user-7")
	if user.CurrentDeviceID != "dev-2" {
		t.Fatalf("expected current device dev-2 kept, got %q", user.CurrentDeviceID)
	}
	_, err := store.ReleaseDevice(ctx, ReleaseDeviceInput{DeviceID: "dev-1", OwnerID: "user-7", NextClaimCode: "NEXT02"})
	if !errors.Is(err, ErrDeviceNotOwned) {
		t.Fatalf("expected not owned for unclaimed device, got %v", err)
	}
}

func TestMemoryStore_ClaimRequiresUnownedDevice(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, store, "dev-42", "ABC123")

	device := store.devices["dev-42"]
	device.OwnerID = "user-7"
	store.devices["dev-42"] = device

	_, err := store.ClaimDevice(ctx, ClaimDeviceInput{DeviceID: "dev-42", ClaimCode: "ABC123", OwnerID: "user-8"})
	if !errors.Is(err, ErrClaimCodeMismatch) {
		t.Fatalf("expected mismatch for owned device with a code, got %v", err)
	}
	if got := store.devices["dev-42"].OwnerID; got != "user-7" {
		t.Fatalf("expected owner to stay user-7, got %q", got)
	}
}

func TestMemoryStore_ClaimDoesNotNormalizeDeviceID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedDevice(t, store, "dev-42", "ABC123")

	_, err := store.ClaimDevice(ctx, ClaimDeviceInput{DeviceID: " dev-42", ClaimCode: "ABC123", OwnerID: "user-7"})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected padded id not to resolve, got %v", err)
	}
}
