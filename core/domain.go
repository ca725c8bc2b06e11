package core

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	linkStatusLinkedPrefix = "DEVICE:LINKED:"
	linkStatusUnlinked     = "DEVICE:UNLINKED"

	// The firmware copies the owner name into a 12 byte buffer.
	linkStatusMaxNameBytes = 11
)

// Caller is the authenticated identity attached to a request. A zero Caller
// means the request carried no identity.
type Caller struct {
	UID         string
	DisplayName string
}

func (c Caller) Authenticated() bool {
	return strings.TrimSpace(c.UID) != ""
}

// Device is the externally owned device record keyed by device id.
type Device struct {
	ID        string
	Label     string
	ClaimCode string
	OwnerID   string
	ClaimedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d Device) Claimed() bool {
	return strings.TrimSpace(d.OwnerID) != ""
}

// Redacted returns a copy of the device without its claim code.
func (d Device) Redacted() Device {
	d.ClaimCode = ""
	d.ClaimedAt = cloneTime(d.ClaimedAt)
	return d
}

// User is the per-caller record holding the current device pointer.
type User struct {
	ID              string
	DisplayName     string
	Email           string
	CurrentDeviceID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ClaimRequest struct {
	Caller    Caller
	DeviceID  string
	ClaimCode string
}

type ClaimResult struct {
	OK       bool   `json:"ok"`
	DeviceID string `json:"deviceId"`
}

type ReleaseRequest struct {
	Caller   Caller
	DeviceID string
}

type ReleaseResult struct {
	OK       bool   `json:"ok"`
	DeviceID string `json:"deviceId"`
}

type ProvisionDeviceInput struct {
	DeviceID  string
	Label     string
	ClaimCode string
}

type CreateDeviceInput struct {
	ID        string
	Label     string
	ClaimCode string
}

// ClaimDeviceInput is the conditional check-and-claim handed to a ClaimStore.
// The store stamps the claim time with its own clock. OwnerName only seeds a
// user record created by the claim.
type ClaimDeviceInput struct {
	DeviceID  string
	ClaimCode string
	OwnerID   string
	OwnerName string
}

type ClaimOutcome struct {
	Device Device
	User   User
}

type ReleaseDeviceInput struct {
	DeviceID      string
	OwnerID       string
	NextClaimCode string
}

// MergeUserInput updates only the non-nil fields of a user record, creating
// the record when it does not exist.
type MergeUserInput struct {
	ID              string
	DisplayName     *string
	Email           *string
	CurrentDeviceID *string
}

// LinkStatus is the ownership view a device polls for.
type LinkStatus struct {
	DeviceID  string
	Linked    bool
	OwnerID   string
	OwnerName string
}

// Line renders the status in the serial protocol spoken by the device
// firmware: DEVICE:LINKED:<name> or DEVICE:UNLINKED.
func (s LinkStatus) Line() string {
	if !s.Linked {
		return linkStatusUnlinked
	}
	name := sanitizeLinkName(s.OwnerName)
	if name == "" {
		name = sanitizeLinkName(s.OwnerID)
	}
	return linkStatusLinkedPrefix + truncateUTF8(name, linkStatusMaxNameBytes)
}

func sanitizeLinkName(value string) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(value)
}

func truncateUTF8(value string, maxBytes int) string {
	if len(value) <= maxBytes {
		return value
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

func cloneTime(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func stringPtr(value string) *string {
	return &value
}
