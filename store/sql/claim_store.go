package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	"github.com/uptrace/bun"
)

// ClaimStore runs claim and release as single transactions. The device
// update is conditional on the code read inside the transaction, so a
// concurrent claim that already consumed the code affects zero rows.
type ClaimStore struct {
	db *bun.DB
}

func NewClaimStore(db *bun.DB) (*ClaimStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ClaimStore{db: db}, nil
}

func (s *ClaimStore) ClaimDevice(ctx context.Context, in core.ClaimDeviceInput) (core.ClaimOutcome, error) {
	if s == nil || s.db == nil {
		return core.ClaimOutcome{}, fmt.Errorf("sqlstore: claim store is not configured")
	}
	deviceID := in.DeviceID
	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		return core.ClaimOutcome{}, fmt.Errorf("sqlstore: owner id is required")
	}

	var out core.ClaimOutcome
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		device, err := findDeviceTx(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		if device == nil {
			return core.ErrDeviceNotFound
		}
		stored := derefString(device.ClaimCode)
		if device.OwnerID != nil || !core.ClaimCodesEqual(stored, in.ClaimCode) {
			return core.ErrClaimCodeMismatch
		}

		now := time.Now().UTC()
		result, err := tx.NewUpdate().
			Model((*deviceRecord)(nil)).
			Set("owner_id = ?", ownerID).
			Set("claimed_at = ?", now).
			Set("claim_code = NULL").
			Set("updated_at = ?", now).
			Where("id = ?", deviceID).
			Where("claim_code = ?", stored).
			Where("owner_id IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		if rowsAffected(result) != 1 {
			return core.ErrClaimCodeMismatch
		}

		existingUser, err := findUserTx(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		merge := core.MergeUserInput{ID: ownerID, CurrentDeviceID: &deviceID}
		if existingUser == nil {
			if name := strings.TrimSpace(in.OwnerName); name != "" {
				merge.DisplayName = &name
			}
		}
		user, err := mergeUserTx(ctx, tx, merge, now)
		if err != nil {
			return err
		}

		device.OwnerID = &ownerID
		device.ClaimedAt = &now
		device.ClaimCode = nil
		device.UpdatedAt = now
		out = core.ClaimOutcome{Device: device.toDomain(), User: user.toDomain()}
		return nil
	})
	if err != nil {
		return core.ClaimOutcome{}, err
	}
	return out, nil
}

func (s *ClaimStore) ReleaseDevice(ctx context.Context, in core.ReleaseDeviceInput) (core.Device, error) {
	if s == nil || s.db == nil {
		return core.Device{}, fmt.Errorf("sqlstore: claim store is not configured")
	}
	deviceID := strings.TrimSpace(in.DeviceID)
	ownerID := strings.TrimSpace(in.OwnerID)

	var out core.Device
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		result, err := tx.NewUpdate().
			Model((*deviceRecord)(nil)).
			Set("owner_id = NULL").
			Set("claimed_at = NULL").
			Set("claim_code = ?", optionalString(in.NextClaimCode)).
			Set("updated_at = ?", now).
			Where("id = ?", deviceID).
			Where("owner_id = ?", ownerID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rowsAffected(result) == 0 {
			existing, findErr := findDeviceTx(ctx, tx, deviceID)
			if findErr != nil {
				return findErr
			}
			if existing == nil {
				return core.ErrDeviceNotFound
			}
			return core.ErrDeviceNotOwned
		}

		if _, err := tx.NewUpdate().
			Model((*userRecord)(nil)).
			Set("current_device_id = NULL").
			Set("updated_at = ?", now).
			Where("id = ?", ownerID).
			Where("current_device_id = ?", deviceID).
			Exec(ctx); err != nil {
			return err
		}

		device, err := findDeviceTx(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		if device == nil {
			return core.ErrDeviceNotFound
		}
		out = device.toDomain()
		return nil
	})
	if err != nil {
		return core.Device{}, err
	}
	return out, nil
}
