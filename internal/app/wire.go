//go:build wireinject

package app

import (
	"context"

	"github.com/google/wire"
	"github/chapool/go-stark-signer/internal/config"
	"github/chapool/go-stark-signer/internal/metrics"
	"github/chapool/go-stark-signer/internal/wallet/signer"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// deviceSet groups the providers needed to sign with the configured device.
var deviceSet = wire.NewSet(
	metrics.New,
	NewDevice,
	NewDeviceSigner,
	NewSignerSession,
	signer.New,
	newDeviceSession,
)

// networkSet adds the node dependent components on top of deviceSet.
var networkSet = wire.NewSet(
	NewRPCClient,
	NewStore,
	NewTxOptions,
	NewDeployer,
	NewExecutor,
	newSession,
)

// InitDeviceSession opens the device only.
func InitDeviceSession(
	_ context.Context,
	_ config.Server,
) (*DeviceSession, func(), error) {
	wire.Build(deviceSet)
	return new(DeviceSession), nil, nil
}

// InitSession opens the device, the RPC client and the deployment store.
func InitSession(
	_ context.Context,
	_ config.Server,
) (*Session, func(), error) {
	wire.Build(deviceSet, networkSet)
	return new(Session), nil, nil
}
