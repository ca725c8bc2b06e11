package query

import (
	"context"

	"github.com/goliatone/go-devices/core"
)

type DeviceReader interface {
	GetDevice(ctx context.Context, deviceID string) (core.Device, error)
	ListOwnedDevices(ctx context.Context, caller core.Caller) ([]core.Device, error)
	GetLinkStatus(ctx context.Context, deviceID string) (core.LinkStatus, error)
}

type UserReader interface {
	GetUser(ctx context.Context, uid string) (core.User, error)
}

type GetDeviceQuery struct {
	reader DeviceReader
}

func NewGetDeviceQuery(reader DeviceReader) *GetDeviceQuery {
	return &GetDeviceQuery{reader: reader}
}

func (q *GetDeviceQuery) Query(ctx context.Context, msg GetDeviceMessage) (core.Device, error) {
	if q == nil || q.reader == nil {
		return core.Device{}, queryDependencyError("query: device reader is required")
	}
	return q.reader.GetDevice(ctx, msg.DeviceID)
}

type GetUserQuery struct {
	reader UserReader
}

func NewGetUserQuery(reader UserReader) *GetUserQuery {
	return &GetUserQuery{reader: reader}
}

func (q *GetUserQuery) Query(ctx context.Context, msg GetUserMessage) (core.User, error) {
	if q == nil || q.reader == nil {
		return core.User{}, queryDependencyError("query: user reader is required")
	}
	return q.reader.GetUser(ctx, msg.UID)
}

type ListOwnedDevicesQuery struct {
	reader DeviceReader
}

func NewListOwnedDevicesQuery(reader DeviceReader) *ListOwnedDevicesQuery {
	return &ListOwnedDevicesQuery{reader: reader}
}

func (q *ListOwnedDevicesQuery) Query(ctx context.Context, msg ListOwnedDevicesMessage) ([]core.Device, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: device reader is required")
	}
	return q.reader.ListOwnedDevices(ctx, msg.Caller)
}

type GetLinkStatusQuery struct {
	reader DeviceReader
}

func NewGetLinkStatusQuery(reader DeviceReader) *GetLinkStatusQuery {
	return &GetLinkStatusQuery{reader: reader}
}

func (q *GetLinkStatusQuery) Query(ctx context.Context, msg GetLinkStatusMessage) (core.LinkStatus, error) {
	if q == nil || q.reader == nil {
		return core.LinkStatus{}, queryDependencyError("query: device reader is required")
	}
	return q.reader.GetLinkStatus(ctx, msg.DeviceID)
}
