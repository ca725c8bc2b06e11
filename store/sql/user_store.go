package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}
	return &UserStore{db: db, repo: repo}, nil
}

func (s *UserStore) GetUser(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.User{}, core.ErrUserNotFound
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.User{}, err
	}
	if len(records) == 0 {
		return core.User{}, core.ErrUserNotFound
	}
	return records[0].toDomain(), nil
}

// MergeUser writes only the fields set on the input. Fields left nil keep
// their stored value.
func (s *UserStore) MergeUser(ctx context.Context, in core.MergeUserInput) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	if strings.TrimSpace(in.ID) == "" {
		return core.User{}, fmt.Errorf("sqlstore: user id is required")
	}
	var out core.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := mergeUserTx(ctx, tx, in, time.Now().UTC())
		if err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.User{}, err
	}
	return out, nil
}

func mergeUserTx(ctx context.Context, tx bun.Tx, in core.MergeUserInput, now time.Time) (*userRecord, error) {
	id := strings.TrimSpace(in.ID)
	record, err := findUserTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &userRecord{ID: id, CreatedAt: now, UpdatedAt: now}
		applyUserMerge(record, in)
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return nil, err
		}
		return record, nil
	}

	applyUserMerge(record, in)
	record.UpdatedAt = now
	query := tx.NewUpdate().Model(record).WherePK().Column("updated_at")
	if in.DisplayName != nil {
		query = query.Column("display_name")
	}
	if in.Email != nil {
		query = query.Column("email")
	}
	if in.CurrentDeviceID != nil {
		query = query.Column("current_device_id")
	}
	if _, err := query.Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func applyUserMerge(record *userRecord, in core.MergeUserInput) {
	if in.DisplayName != nil {
		record.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Email != nil {
		record.Email = strings.TrimSpace(*in.Email)
	}
	if in.CurrentDeviceID != nil {
		record.CurrentDeviceID = optionalString(*in.CurrentDeviceID)
	}
}
