// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

// Package payments provides the built-in payment processing plugin.
// It exposes charge and refund hooks and emits payment lifecycle
// events other plugins can subscribe to.
package payments

import (
	"context"
	_ "embed"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/bizbox/bizbox/internal/plugin"
)

//go:embed plugin.yaml
var manifestYAML []byte

// Manifest parses the embedded plugin manifest.
func Manifest() (*plugin.Manifest, error) {
	return plugin.ParseManifest(manifestYAML)
}

// Charge is the receipt returned by the payments.charge hook.
type Charge struct {
	ID       string
	Amount   int64
	Currency string
	Captured bool
}

// Ref returns the charge id. Callers that receive the receipt through
// a hook result can read it without depending on this package.
func (c *Charge) Ref() string {
	return c.ID
}

// Plugin processes charges and refunds in memory.
type Plugin struct {
	mu      sync.Mutex
	host    plugin.Host
	charges map[string]*Charge
}

// New creates an uninitialized payments plugin.
func New() *Plugin {
	return &Plugin{charges: make(map[string]*Charge)}
}

// Initialize registers the charge and refund hooks.
func (p *Plugin) Initialize(_ context.Context, host plugin.Host) error {
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()

	if err := host.RegisterHook("payments.charge", p.handleCharge); err != nil {
		return err
	}
	if err := host.RegisterHook("payments.refund", p.handleRefund); err != nil {
		return err
	}

	host.Logger().Info("payments plugin ready")
	return nil
}

// Destroy drops all in-memory payment records.
func (p *Plugin) Destroy(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.charges = make(map[string]*Charge)
	p.host = nil
	return nil
}

// handleCharge expects args[0] to be the amount in minor units (int64)
// and args[1] the ISO currency code. It returns a *Charge receipt.
func (p *Plugin) handleCharge(ctx context.Context, args ...any) (any, error) {
	if len(args) < 2 {
		return nil, oops.Code("PAYMENT_INVALID").Errorf("charge requires amount and currency, got %d args", len(args))
	}
	amount, ok := args[0].(int64)
	if !ok || amount <= 0 {
		return nil, oops.Code("PAYMENT_INVALID").With("amount", args[0]).Errorf("charge amount must be a positive int64")
	}
	currency, ok := args[1].(string)
	if !ok || len(currency) != 3 {
		return nil, oops.Code("PAYMENT_INVALID").With("currency", args[1]).Errorf("currency must be a 3-letter code")
	}

	charge := &Charge{
		ID:       ulid.Make().String(),
		Amount:   amount,
		Currency: currency,
		Captured: true,
	}

	p.mu.Lock()
	p.charges[charge.ID] = charge
	host := p.host
	p.mu.Unlock()

	if err := host.EmitEvent(ctx, "payments.charge.captured", charge); err != nil {
		return nil, err
	}
	return charge, nil
}

// handleRefund expects args[0] to be a charge id. The charge must
// exist and still be captured.
func (p *Plugin) handleRefund(ctx context.Context, args ...any) (any, error) {
	if len(args) < 1 {
		return nil, oops.Code("PAYMENT_INVALID").Errorf("refund requires a charge id")
	}
	chargeID, ok := args[0].(string)
	if !ok {
		return nil, oops.Code("PAYMENT_INVALID").With("charge_id", args[0]).Errorf("charge id must be a string")
	}

	p.mu.Lock()
	charge, exists := p.charges[chargeID]
	refundable := exists && charge.Captured
	if refundable {
		charge.Captured = false
	}
	host := p.host
	p.mu.Unlock()

	if !exists {
		return nil, oops.Code("PAYMENT_NOT_FOUND").With("charge_id", chargeID).Errorf("charge %s not found", chargeID)
	}
	if !refundable {
		return nil, oops.Code("PAYMENT_ALREADY_REFUNDED").With("charge_id", chargeID).Errorf("charge %s already refunded", chargeID)
	}

	if err := host.EmitEvent(ctx, "payments.charge.refunded", charge); err != nil {
		return nil, err
	}
	return charge, nil
}
