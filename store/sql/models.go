package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	"github.com/uptrace/bun"
)

type deviceRecord struct {
	bun.BaseModel `bun:"table:devices,alias:d"`

	ID        string     `bun:"id,pk"`
	Label     string     `bun:"label,notnull"`
	ClaimCode *string    `bun:"claim_code"`
	OwnerID   *string    `bun:"owner_id"`
	ClaimedAt *time.Time `bun:"claimed_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID              string    `bun:"id,pk"`
	DisplayName     string    `bun:"display_name,notnull"`
	Email           string    `bun:"email,notnull"`
	CurrentDeviceID *string   `bun:"current_device_id"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *deviceRecord) toDomain() core.Device {
	if r == nil {
		return core.Device{}
	}
	return core.Device{
		ID:        r.ID,
		Label:     r.Label,
		ClaimCode: derefString(r.ClaimCode),
		OwnerID:   derefString(r.OwnerID),
		ClaimedAt: utcTimePointer(r.ClaimedAt),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:              r.ID,
		DisplayName:     r.DisplayName,
		Email:           r.Email,
		CurrentDeviceID: derefString(r.CurrentDeviceID),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func utcTimePointer(input *time.Time) *time.Time {
	if input == nil || input.IsZero() {
		return nil
	}
	value := input.UTC()
	return &value
}
