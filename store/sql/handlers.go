package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Device and user ids are caller supplied strings. GetID only yields a
// value when the id happens to be a UUID; lookups go through the "id"
// identifier column instead.
func stringIDHandlers[T any](newRecord func() T, idOf func(T) *string) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if id := idOf(record); id != nil {
				return parseUUID(*id)
			}
			return uuid.Nil
		},
		SetID: func(record T, id uuid.UUID) {
			if target := idOf(record); target != nil {
				*target = id.String()
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			if id := idOf(record); id != nil {
				return strings.TrimSpace(*id)
			}
			return ""
		},
	}
}

func deviceHandlers() repository.ModelHandlers[*deviceRecord] {
	return stringIDHandlers(
		func() *deviceRecord { return &deviceRecord{} },
		func(record *deviceRecord) *string {
			if record == nil {
				return nil
			}
			return &record.ID
		},
	)
}

func userHandlers() repository.ModelHandlers[*userRecord] {
	return stringIDHandlers(
		func() *userRecord { return &userRecord{} },
		func(record *userRecord) *string {
			if record == nil {
				return nil
			}
			return &record.ID
		},
	)
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
