// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

// Package plugintest provides test doubles for the plugin registry.
package plugintest

import (
	"context"
	"sync/atomic"

	"github.com/bizbox/bizbox/internal/plugin"
)

// FakePlugin is a Plugin implementation that records lifecycle calls.
type FakePlugin struct {
	// InitErr, when set, is returned by Initialize.
	InitErr error
	// DestroyErr, when set, is returned by Destroy.
	DestroyErr error
	// OnInitialize, when set, runs during Initialize with the host
	// facade. Use it to register hooks and event subscriptions.
	OnInitialize func(ctx context.Context, host plugin.Host) error

	initCalls    atomic.Int64
	destroyCalls atomic.Int64
}

// Initialize records the call, runs OnInitialize if set, then returns
// InitErr.
func (f *FakePlugin) Initialize(ctx context.Context, host plugin.Host) error {
	f.initCalls.Add(1)
	if f.OnInitialize != nil {
		if err := f.OnInitialize(ctx, host); err != nil {
			return err
		}
	}
	return f.InitErr
}

// Destroy records the call and returns DestroyErr.
func (f *FakePlugin) Destroy(_ context.Context) error {
	f.destroyCalls.Add(1)
	return f.DestroyErr
}

// InitCalls returns how many times Initialize ran.
func (f *FakePlugin) InitCalls() int {
	return int(f.initCalls.Load())
}

// DestroyCalls returns how many times Destroy ran.
func (f *FakePlugin) DestroyCalls() int {
	return int(f.destroyCalls.Load())
}

// ManifestOption mutates a manifest built by NewManifest.
type ManifestOption func(*plugin.Manifest)

// WithDependencies sets hard dependencies.
func WithDependencies(deps map[string]string) ManifestOption {
	return func(m *plugin.Manifest) {
		m.Dependencies = deps
	}
}

// WithPeerDependencies sets peer dependencies.
func WithPeerDependencies(deps map[string]string) ManifestOption {
	return func(m *plugin.Manifest) {
		m.PeerDependencies = deps
	}
}

// NewManifest builds a minimal valid manifest for tests.
func NewManifest(id, version string, opts ...ManifestOption) *plugin.Manifest {
	m := &plugin.Manifest{
		ID:          id,
		Name:        id,
		Version:     version,
		Description: "test plugin " + id,
		Author:      "BizBox Tests",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
