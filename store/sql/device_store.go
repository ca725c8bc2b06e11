package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeviceStore struct {
	db   *bun.DB
	repo repository.Repository[*deviceRecord]
}

func NewDeviceStore(db *bun.DB) (*DeviceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deviceRecord](db, deviceHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid device repository wiring: %w", err)
		}
	}
	return &DeviceStore{db: db, repo: repo}, nil
}

func (s *DeviceStore) GetDevice(ctx context.Context, id string) (core.Device, error) {
	if s == nil || s.repo == nil {
		return core.Device{}, fmt.Errorf("sqlstore: device store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Device{}, core.ErrDeviceNotFound
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Device{}, err
	}
	if len(records) == 0 {
		return core.Device{}, core.ErrDeviceNotFound
	}
	return records[0].toDomain(), nil
}

func (s *DeviceStore) CreateDevice(ctx context.Context, in core.CreateDeviceInput) (core.Device, error) {
	if s == nil || s.db == nil {
		return core.Device{}, fmt.Errorf("sqlstore: device store is not configured")
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	record := &deviceRecord{
		ID:        id,
		Label:     strings.TrimSpace(in.Label),
		ClaimCode: optionalString(in.ClaimCode),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Device{}, core.ErrDeviceExists
		}
		return core.Device{}, err
	}
	return record.toDomain(), nil
}

func (s *DeviceStore) ListDevicesByOwner(ctx context.Context, ownerID string) ([]core.Device, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: device store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return []core.Device{}, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("owner_id", "=", ownerID),
		repository.OrderBy("claimed_at ASC"),
		repository.OrderBy("id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Device, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *DeviceStore) ReplaceClaimCode(ctx context.Context, deviceID string, code string) (core.Device, error) {
	if s == nil || s.db == nil {
		return core.Device{}, fmt.Errorf("sqlstore: device store is not configured")
	}
	deviceID = strings.TrimSpace(deviceID)
	var out core.Device
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*deviceRecord)(nil)).
			Set("claim_code = ?", optionalString(code)).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", deviceID).
			Where("owner_id IS NULL").
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
			return core.ErrDeviceClaimed
		}
		record, err := findDeviceTx(ctx, tx, deviceID)
		if err != nil {
			return err
		}
		if record == nil {
			return core.ErrDeviceNotFound
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Device{}, err
	}
	return out, nil
}
