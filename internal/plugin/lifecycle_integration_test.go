// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

//go:build integration

package plugin_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/bizbox/bizbox/internal/plugin"
	"github.com/bizbox/bizbox/plugins/booking"
	"github.com/bizbox/bizbox/plugins/ecommerce"
	"github.com/bizbox/bizbox/plugins/media"
	"github.com/bizbox/bizbox/plugins/payments"
)

// registerAll registers the four built-in plugins on a fresh registry.
func registerAll(registry *plugin.Registry) (*booking.Plugin, *ecommerce.Plugin) {
	pm, err := payments.Manifest()
	Expect(err).NotTo(HaveOccurred())
	Expect(registry.Register(payments.New(), pm)).To(Succeed())

	em, err := ecommerce.Manifest()
	Expect(err).NotTo(HaveOccurred())
	shop := ecommerce.New()
	Expect(registry.Register(shop, em)).To(Succeed())

	bm, err := booking.Manifest()
	Expect(err).NotTo(HaveOccurred())
	scheduler := booking.New()
	Expect(registry.Register(scheduler, bm)).To(Succeed())

	mm, err := media.Manifest()
	Expect(err).NotTo(HaveOccurred())
	Expect(registry.Register(media.New(), mm)).To(Succeed())

	return scheduler, shop
}

var _ = Describe("Plugin lifecycle", func() {
	var registry *plugin.Registry
	var scheduler *booking.Plugin
	var ctx context.Context

	BeforeEach(func() {
		registry = plugin.NewRegistry()
		scheduler, _ = registerAll(registry)
		ctx = context.Background()
	})

	Describe("initialization", func() {
		It("initializes hard dependencies before dependents", func() {
			Expect(registry.Initialize(ctx, "ecommerce", nil)).To(Succeed())

			Expect(registry.IsActive("ecommerce")).To(BeTrue())
			Expect(registry.IsActive("payments")).To(BeTrue())
			Expect(registry.IsActive("booking")).To(BeFalse())
		})

		It("brings the whole platform up", func() {
			for _, id := range registry.List() {
				Expect(registry.Initialize(ctx, id, nil)).To(Succeed())
			}

			health := registry.Health()
			Expect(health.TotalPlugins).To(Equal(4))
			Expect(health.Initialized).To(BeTrue())
			Expect(health.ByStatus[plugin.StatusActive]).To(Equal(4))
		})
	})

	Describe("cross-plugin flows", func() {
		BeforeEach(func() {
			for _, id := range registry.List() {
				Expect(registry.Initialize(ctx, id, nil)).To(Succeed())
			}
		})

		It("holds a booking slot when a storefront order is placed", func() {
			results, err := registry.ExecuteHook(ctx, "ecommerce.checkout",
				"consultation", 1, int64(15000), "USD")
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			reservations := scheduler.Reservations()
			Expect(reservations).To(HaveLen(1))
			Expect(reservations[0].Slot).To(Equal("consultation"))
		})

		It("charges and refunds through hook execution", func() {
			results, err := registry.ExecuteHook(ctx, "payments.charge", int64(5000), "USD")
			Expect(err).NotTo(HaveOccurred())
			charge := results[0].(*payments.Charge)

			results, err = registry.ExecuteHook(ctx, "payments.refund", charge.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].(*payments.Charge).Captured).To(BeFalse())
		})
	})

	Describe("disable", func() {
		BeforeEach(func() {
			for _, id := range registry.List() {
				Expect(registry.Initialize(ctx, id, nil)).To(Succeed())
			}
		})

		It("detaches hooks and subscriptions without cascading", func() {
			Expect(registry.Disable(ctx, "booking")).To(Succeed())

			// Orders still flow; no reservation side effect remains.
			_, err := registry.ExecuteHook(ctx, "ecommerce.checkout",
				"consultation", 1, int64(15000), "USD")
			Expect(err).NotTo(HaveOccurred())
			Expect(scheduler.Reservations()).To(BeEmpty())

			Expect(registry.IsActive("ecommerce")).To(BeTrue())
			Expect(registry.IsActive("payments")).To(BeTrue())
		})

		It("is terminal until re-registration", func() {
			Expect(registry.Disable(ctx, "media")).To(Succeed())

			err := registry.Initialize(ctx, "media", nil)
			Expect(err).To(HaveOccurred())

			mm, mErr := media.Manifest()
			Expect(mErr).NotTo(HaveOccurred())
			err = registry.Register(media.New(), mm)
			Expect(err).To(HaveOccurred(), "re-registration requires a fresh registry entry")
		})
	})
})
