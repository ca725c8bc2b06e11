package mongostore

import (
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	fieldID              = "_id"
	fieldLabel           = "label"
	fieldClaimCode       = "claimCode"
	fieldOwnerID         = "ownerId"
	fieldClaimedAt       = "claimedAt"
	fieldCreatedAt       = "createdAt"
	fieldUpdatedAt       = "updatedAt"
	fieldDisplayName     = "displayName"
	fieldEmail           = "email"
	fieldCurrentDeviceID = "currentDeviceId"
)

type deviceDocument struct {
	ID        string     `bson:"_id"`
	Label     string     `bson:"label"`
	ClaimCode string     `bson:"claimCode,omitempty"`
	OwnerID   string     `bson:"ownerId,omitempty"`
	ClaimedAt *time.Time `bson:"claimedAt,omitempty"`
	CreatedAt time.Time  `bson:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt"`
}

type userDocument struct {
	ID              string    `bson:"_id"`
	DisplayName     string    `bson:"displayName"`
	Email           string    `bson:"email"`
	CurrentDeviceID string    `bson:"currentDeviceId,omitempty"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

func (d deviceDocument) toDomain() core.Device {
	var claimedAt *time.Time
	if d.ClaimedAt != nil && !d.ClaimedAt.IsZero() {
		value := d.ClaimedAt.UTC()
		claimedAt = &value
	}
	return core.Device{
		ID:        d.ID,
		Label:     d.Label,
		ClaimCode: d.ClaimCode,
		OwnerID:   d.OwnerID,
		ClaimedAt: claimedAt,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func (d userDocument) toDomain() core.User {
	return core.User{
		ID:              d.ID,
		DisplayName:     d.DisplayName,
		Email:           d.Email,
		CurrentDeviceID: d.CurrentDeviceID,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func newDeviceDocument(in core.CreateDeviceInput, id string, now time.Time) deviceDocument {
	return deviceDocument{
		ID:        id,
		Label:     strings.TrimSpace(in.Label),
		ClaimCode: strings.TrimSpace(in.ClaimCode),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// claimFilter matches the device only while it is unowned and still carries
// the code read before the update.
func claimFilter(deviceID string, storedCode string) bson.D {
	return bson.D{
		{Key: fieldID, Value: deviceID},
		{Key: fieldClaimCode, Value: storedCode},
		{Key: fieldOwnerID, Value: nil},
	}
}

func claimUpdate(ownerID string, now time.Time) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldOwnerID, Value: ownerID},
			{Key: fieldClaimedAt, Value: now},
			{Key: fieldUpdatedAt, Value: now},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: fieldClaimCode, Value: ""},
		}},
	}
}

// userClaimUpdate points the user at the claimed device. The display name is
// only written when the claim creates the user document.
func userClaimUpdate(deviceID string, ownerName string, now time.Time) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldCurrentDeviceID, Value: deviceID},
			{Key: fieldUpdatedAt, Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: fieldDisplayName, Value: strings.TrimSpace(ownerName)},
			{Key: fieldEmail, Value: ""},
			{Key: fieldCreatedAt, Value: now},
		}},
	}
}

func releaseFilter(deviceID string, ownerID string) bson.D {
	return bson.D{
		{Key: fieldID, Value: deviceID},
		{Key: fieldOwnerID, Value: ownerID},
	}
}

func releaseUpdate(nextCode string, now time.Time) bson.D {
	set := bson.D{{Key: fieldUpdatedAt, Value: now}}
	unset := bson.D{
		{Key: fieldOwnerID, Value: ""},
		{Key: fieldClaimedAt, Value: ""},
	}
	if code := strings.TrimSpace(nextCode); code != "" {
		set = append(set, bson.E{Key: fieldClaimCode, Value: code})
	} else {
		unset = append(unset, bson.E{Key: fieldClaimCode, Value: ""})
	}
	return bson.D{
		{Key: "$set", Value: set},
		{Key: "$unset", Value: unset},
	}
}

func userReleaseFilter(ownerID string, deviceID string) bson.D {
	return bson.D{
		{Key: fieldID, Value: ownerID},
		{Key: fieldCurrentDeviceID, Value: deviceID},
	}
}

func userReleaseUpdate(now time.Time) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{{Key: fieldUpdatedAt, Value: now}}},
		{Key: "$unset", Value: bson.D{{Key: fieldCurrentDeviceID, Value: ""}}},
	}
}

func replaceCodeFilter(deviceID string) bson.D {
	return bson.D{
		{Key: fieldID, Value: deviceID},
		{Key: fieldOwnerID, Value: nil},
	}
}

func replaceCodeUpdate(code string, now time.Time) bson.D {
	if code = strings.TrimSpace(code); code == "" {
		return bson.D{
			{Key: "$set", Value: bson.D{{Key: fieldUpdatedAt, Value: now}}},
			{Key: "$unset", Value: bson.D{{Key: fieldClaimCode, Value: ""}}},
		}
	}
	return bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldClaimCode, Value: code},
			{Key: fieldUpdatedAt, Value: now},
		}},
	}
}

// mergeUserUpdate sets only the provided fields. Fields the input leaves
// nil are seeded with zero values when the document is inserted.
func mergeUserUpdate(in core.MergeUserInput, now time.Time) bson.D {
	set := bson.D{{Key: fieldUpdatedAt, Value: now}}
	unset := bson.D{}
	onInsert := bson.D{{Key: fieldCreatedAt, Value: now}}

	if in.DisplayName != nil {
		set = append(set, bson.E{Key: fieldDisplayName, Value: strings.TrimSpace(*in.DisplayName)})
	} else {
		onInsert = append(onInsert, bson.E{Key: fieldDisplayName, Value: ""})
	}
	if in.Email != nil {
		set = append(set, bson.E{Key: fieldEmail, Value: strings.TrimSpace(*in.Email)})
	} else {
		onInsert = append(onInsert, bson.E{Key: fieldEmail, Value: ""})
	}
	if in.CurrentDeviceID != nil {
		if current := strings.TrimSpace(*in.CurrentDeviceID); current != "" {
			set = append(set, bson.E{Key: fieldCurrentDeviceID, Value: current})
		} else {
			unset = append(unset, bson.E{Key: fieldCurrentDeviceID, Value: ""})
		}
	}

	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: onInsert},
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}

func ownerDevicesSort() bson.D {
	return bson.D{
		{Key: fieldClaimedAt, Value: 1},
		{Key: fieldID, Value: 1},
	}
}
