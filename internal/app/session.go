// Package app assembles the signing components from the server configuration.
package app

import (
	"github/chapool/go-stark-signer/internal/config"
	"github/chapool/go-stark-signer/internal/metrics"
	"github/chapool/go-stark-signer/internal/wallet/account"
	"github/chapool/go-stark-signer/internal/wallet/deploy"
	"github/chapool/go-stark-signer/internal/wallet/rpc"
	"github/chapool/go-stark-signer/internal/wallet/signer"
)

// DeviceSession is a signer without network access.
type DeviceSession struct {
	Config  config.Server
	Metrics *metrics.Metrics
	Signer  *signer.MultisigSigner
}

// Session is a signer connected to a starknet node.
type Session struct {
	DeviceSession

	RPC       *rpc.Client
	Store     deploy.Store
	TxOptions TxOptions
	Deployer  *deploy.Deployer
	Executor  *account.Executor
}

func newDeviceSession(cfg config.Server, m *metrics.Metrics, s *signer.MultisigSigner) *DeviceSession {
	return &DeviceSession{
		Config:  cfg,
		Metrics: m,
		Signer:  s,
	}
}

func newSession(
	ds *DeviceSession,
	client *rpc.Client,
	store deploy.Store,
	opts TxOptions,
	deployer *deploy.Deployer,
	executor *account.Executor,
) *Session {
	return &Session{
		DeviceSession: *ds,
		RPC:           client,
		Store:         store,
		TxOptions:     opts,
		Deployer:      deployer,
		Executor:      executor,
	}
}
