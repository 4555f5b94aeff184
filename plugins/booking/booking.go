// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

// Package booking provides the built-in appointment scheduling plugin.
// It watches storefront orders so a purchased service automatically
// holds a slot, and treats payments as a peer dependency: reservation
// bookkeeping works without it, paid bookings need it present.
package booking

import (
	"context"
	_ "embed"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/bizbox/bizbox/internal/plugin"
	"github.com/bizbox/bizbox/plugins/ecommerce"
)

//go:embed plugin.yaml
var manifestYAML []byte

// Manifest parses the embedded plugin manifest.
func Manifest() (*plugin.Manifest, error) {
	return plugin.ParseManifest(manifestYAML)
}

// Reservation holds one reserved slot.
type Reservation struct {
	ID      string
	Slot    string
	OrderID string
}

// Plugin implements in-memory slot reservation.
type Plugin struct {
	mu           sync.Mutex
	host         plugin.Host
	reservations map[string]*Reservation
	bySlot       map[string]string
}

// New creates an uninitialized booking plugin.
func New() *Plugin {
	return &Plugin{
		reservations: make(map[string]*Reservation),
		bySlot:       make(map[string]string),
	}
}

// Initialize registers the reserve hook and subscribes to storefront
// order events.
func (p *Plugin) Initialize(_ context.Context, host plugin.Host) error {
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()

	if err := host.RegisterHook("booking.reserve", p.handleReserve); err != nil {
		return err
	}
	if err := host.SubscribeToEvent("ecommerce.order.*", p.handleOrderEvent); err != nil {
		return err
	}

	host.Logger().Info("booking plugin ready")
	return nil
}

// Destroy drops all in-memory reservations.
func (p *Plugin) Destroy(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reservations = make(map[string]*Reservation)
	p.bySlot = make(map[string]string)
	p.host = nil
	return nil
}

// Reservations returns a snapshot of current reservations.
func (p *Plugin) Reservations() []*Reservation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Reservation, 0, len(p.reservations))
	for _, r := range p.reservations {
		out = append(out, r)
	}
	return out
}

// handleReserve expects args[0] to be a slot name. A slot can hold at
// most one reservation.
func (p *Plugin) handleReserve(ctx context.Context, args ...any) (any, error) {
	if len(args) < 1 {
		return nil, oops.Code("RESERVATION_INVALID").Errorf("reserve requires a slot name")
	}
	slot, ok := args[0].(string)
	if !ok || slot == "" {
		return nil, oops.Code("RESERVATION_INVALID").With("slot", args[0]).Errorf("slot must be a non-empty string")
	}

	reservation, err := p.reserve(slot, "")
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	host := p.host
	p.mu.Unlock()

	if err := host.EmitEvent(ctx, "booking.reservation.created", reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// handleOrderEvent holds a slot for each created order so purchased
// services get an appointment automatically. The slot is named after
// the SKU.
func (p *Plugin) handleOrderEvent(_ context.Context, event plugin.Event) error {
	if event.Name != "ecommerce.order.created" {
		return nil
	}

	order, ok := event.Payload.(*ecommerce.Order)
	if !ok {
		return oops.Code("RESERVATION_INVALID").
			With("event", event.Name).
			Errorf("unexpected order payload type %T", event.Payload)
	}

	reservation, err := p.reserve(order.SKU, order.ID)
	if err != nil {
		// A taken slot is not an order failure; the tenant resolves
		// the conflict manually.
		p.mu.Lock()
		host := p.host
		p.mu.Unlock()
		host.Logger().Warn("slot already reserved for order",
			"slot", order.SKU,
			"order_id", order.ID,
		)
		return nil
	}

	p.mu.Lock()
	host := p.host
	p.mu.Unlock()
	host.Logger().Info("slot held for order",
		"slot", reservation.Slot,
		"order_id", order.ID,
		"reservation_id", reservation.ID,
	)
	return nil
}

// reserve records a reservation, enforcing slot exclusivity.
func (p *Plugin) reserve(slot, orderID string) (*Reservation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, taken := p.bySlot[slot]; taken {
		return nil, oops.Code("SLOT_TAKEN").
			With("slot", slot).
			With("reservation_id", existing).
			Errorf("slot %s is already reserved", slot)
	}

	reservation := &Reservation{
		ID:      ulid.Make().String(),
		Slot:    slot,
		OrderID: orderID,
	}
	p.reservations[reservation.ID] = reservation
	p.bySlot[slot] = reservation.ID
	return reservation, nil
}
