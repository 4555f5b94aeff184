// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

// Package ecommerce provides the built-in storefront plugin. Checkout
// charges the order total through the payments plugin, a hard
// dependency, then records the order and announces it as an
// ecommerce.order.* event.
package ecommerce

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

// Order is the payload of ecommerce.order.created events.
type Order struct {
	ID       string
	SKU      string
	Quantity int
	Total    int64
	Currency string
	ChargeID string
}

// chargeReceipt is satisfied by the receipt the payments.charge hook
// returns.
type chargeReceipt interface {
	Ref() string
}

// Plugin implements a minimal in-memory storefront.
type Plugin struct {
	mu     sync.Mutex
	host   plugin.Host
	orders map[string]*Order
}

// New creates an uninitialized ecommerce plugin.
func New() *Plugin {
	return &Plugin{orders: make(map[string]*Order)}
}

// Initialize registers the checkout hook.
func (p *Plugin) Initialize(_ context.Context, host plugin.Host) error {
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()

	if err := host.RegisterHook("ecommerce.checkout", p.handleCheckout); err != nil {
		return err
	}

	host.Logger().Info("ecommerce plugin ready")
	return nil
}

// Destroy drops all in-memory orders.
func (p *Plugin) Destroy(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = make(map[string]*Order)
	p.host = nil
	return nil
}

// Orders returns a snapshot of orders created since initialization.
func (p *Plugin) Orders() []*Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Order, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, o)
	}
	return out
}

// handleCheckout expects args: sku (string), quantity (int), unit
// price in minor units (int64), currency (string). It charges the
// total through payments.charge, records an order carrying the charge
// id, and emits ecommerce.order.created.
func (p *Plugin) handleCheckout(ctx context.Context, args ...any) (any, error) {
	if len(args) < 4 {
		return nil, oops.Code("CHECKOUT_INVALID").Errorf("checkout requires sku, quantity, unit price, and currency")
	}
	sku, ok := args[0].(string)
	if !ok || sku == "" {
		return nil, oops.Code("CHECKOUT_INVALID").With("sku", args[0]).Errorf("sku must be a non-empty string")
	}
	quantity, ok := args[1].(int)
	if !ok || quantity <= 0 {
		return nil, oops.Code("CHECKOUT_INVALID").With("quantity", args[1]).Errorf("quantity must be a positive int")
	}
	unitPrice, ok := args[2].(int64)
	if !ok || unitPrice <= 0 {
		return nil, oops.Code("CHECKOUT_INVALID").With("unit_price", args[2]).Errorf("unit price must be a positive int64")
	}
	currency, ok := args[3].(string)
	if !ok || len(currency) != 3 {
		return nil, oops.Code("CHECKOUT_INVALID").With("currency", args[3]).Errorf("currency must be a 3-letter code")
	}

	total := unitPrice * int64(quantity)

	p.mu.Lock()
	host := p.host
	p.mu.Unlock()

	results, err := host.ExecuteHook(ctx, "payments.charge", total, currency)
	if err != nil {
		return nil, oops.Code("CHECKOUT_PAYMENT_FAILED").With("sku", sku).Wrapf(err, "charge for %s failed", sku)
	}

	order := &Order{
		ID:       ulid.Make().String(),
		SKU:      sku,
		Quantity: quantity,
		Total:    total,
		Currency: currency,
	}
	for _, result := range results {
		if receipt, ok := result.(chargeReceipt); ok {
			order.ChargeID = receipt.Ref()
			break
		}
	}
	if order.ChargeID == "" {
		return nil, oops.Code("CHECKOUT_PAYMENT_FAILED").With("sku", sku).Errorf("no charge captured for %s", sku)
	}

	p.mu.Lock()
	p.orders[order.ID] = order
	p.mu.Unlock()

	if err := host.EmitEvent(ctx, "ecommerce.order.created", order); err != nil {
		return nil, err
	}
	return order, nil
}
