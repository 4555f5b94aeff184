// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package payments_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizbox/bizbox/internal/plugin"
	"github.com/bizbox/bizbox/internal/plugin/plugintest"
	"github.com/bizbox/bizbox/pkg/errutil"
	"github.com/bizbox/bizbox/plugins/payments"
)

func TestManifest(t *testing.T) {
	m, err := payments.Manifest()
	require.NoError(t, err)
	assert.Equal(t, "payments", m.ID)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Empty(t, m.Dependencies)
	assert.Len(t, m.Routes, 2)
}

func newActiveRegistry(t *testing.T) *plugin.Registry {
	t.Helper()
	registry := plugin.NewRegistry()

	m, err := payments.Manifest()
	require.NoError(t, err)
	require.NoError(t, registry.Register(payments.New(), m))
	require.NoError(t, registry.Initialize(context.Background(), "payments", nil))
	return registry
}

func TestCharge(t *testing.T) {
	registry := newActiveRegistry(t)

	results, err := registry.ExecuteHook(context.Background(), "payments.charge", int64(2500), "USD")
	require.NoError(t, err)
	require.Len(t, results, 1)

	charge, ok := results[0].(*payments.Charge)
	require.True(t, ok, "expected *payments.Charge, got %T", results[0])
	assert.NotEmpty(t, charge.ID)
	assert.Equal(t, int64(2500), charge.Amount)
	assert.Equal(t, "USD", charge.Currency)
	assert.True(t, charge.Captured)
}

func TestCharge_Invalid(t *testing.T) {
	registry := newActiveRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args []any
	}{
		{name: "missing args", args: []any{}},
		{name: "zero amount", args: []any{int64(0), "USD"}},
		{name: "negative amount", args: []any{int64(-100), "USD"}},
		{name: "amount wrong type", args: []any{"2500", "USD"}},
		{name: "bad currency", args: []any{int64(2500), "US"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.ExecuteHook(ctx, "payments.charge", tt.args...)
			require.Error(t, err)
		})
	}
}

func TestCharge_EmitsEvent(t *testing.T) {
	registry := plugin.NewRegistry()
	ctx := context.Background()

	m, err := payments.Manifest()
	require.NoError(t, err)
	require.NoError(t, registry.Register(payments.New(), m))

	var captured []plugin.Event
	listener := &plugintest.FakePlugin{
		OnInitialize: func(_ context.Context, host plugin.Host) error {
			return host.SubscribeToEvent("payments.*.*", func(_ context.Context, e plugin.Event) error {
				captured = append(captured, e)
				return nil
			})
		},
	}
	require.NoError(t, registry.Register(listener, plugintest.NewManifest("ledger", "1.0.0")))
	require.NoError(t, registry.Initialize(ctx, "payments", nil))
	require.NoError(t, registry.Initialize(ctx, "ledger", nil))

	_, err = registry.ExecuteHook(ctx, "payments.charge", int64(999), "EUR")
	require.NoError(t, err)

	require.Len(t, captured, 1)
	assert.Equal(t, "payments.charge.captured", captured[0].Name)
	assert.Equal(t, "payments", captured[0].Source)
}

func TestRefund(t *testing.T) {
	registry := newActiveRegistry(t)
	ctx := context.Background()

	results, err := registry.ExecuteHook(ctx, "payments.charge", int64(2500), "USD")
	require.NoError(t, err)
	charge := results[0].(*payments.Charge)

	results, err = registry.ExecuteHook(ctx, "payments.refund", charge.ID)
	require.NoError(t, err)
	refunded := results[0].(*payments.Charge)
	assert.False(t, refunded.Captured)
}

func TestRefund_UnknownCharge(t *testing.T) {
	registry := newActiveRegistry(t)

	_, err := registry.ExecuteHook(context.Background(), "payments.refund", "no-such-charge")
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "plugin_id", "payments")
}

func TestRefund_AlreadyRefunded(t *testing.T) {
	registry := newActiveRegistry(t)
	ctx := context.Background()

	results, err := registry.ExecuteHook(ctx, "payments.charge", int64(2500), "USD")
	require.NoError(t, err)
	charge := results[0].(*payments.Charge)

	_, err = registry.ExecuteHook(ctx, "payments.refund", charge.ID)
	require.NoError(t, err)

	_, err = registry.ExecuteHook(ctx, "payments.refund", charge.ID)
	require.Error(t, err)
}

func TestDestroy_DropsCharges(t *testing.T) {
	registry := newActiveRegistry(t)
	ctx := context.Background()

	results, err := registry.ExecuteHook(ctx, "payments.charge", int64(2500), "USD")
	require.NoError(t, err)
	charge := results[0].(*payments.Charge)

	require.NoError(t, registry.Disable(ctx, "payments"))

	// Hook handlers are gone once the plugin is disabled.
	results, err = registry.ExecuteHook(ctx, "payments.refund", charge.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}
