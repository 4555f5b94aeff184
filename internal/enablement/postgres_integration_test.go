// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

//go:build integration

package enablement_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bizbox/bizbox/internal/enablement"
)

// setupPostgresContainer starts a PostgreSQL container, runs migrations, and
// returns a connected store.
func setupPostgresContainer() (*enablement.PostgresStore, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bizbox_test"),
		postgres.WithUsername("bizbox"),
		postgres.WithPassword("bizbox"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := enablement.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := enablement.Connect(ctx, connStr, 10*time.Second)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return enablement.NewPostgresStore(pool), cleanup, nil
}

var _ = Describe("PostgresStore", func() {
	var store *enablement.PostgresStore
	var cleanup func()

	BeforeEach(func() {
		var err error
		store, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("CreateTenant", func() {
		It("assigns an id and creation time", func() {
			ctx := context.Background()

			tenant, err := store.CreateTenant(ctx, "acme", "Acme Corp")
			Expect(err).NotTo(HaveOccurred())
			Expect(tenant.ID).NotTo(BeZero())
			Expect(tenant.Slug).To(Equal("acme"))
			Expect(tenant.CreatedAt).To(BeTemporally("~", time.Now(), time.Minute))
		})

		It("rejects duplicate slugs", func() {
			ctx := context.Background()

			_, err := store.CreateTenant(ctx, "acme", "Acme Corp")
			Expect(err).NotTo(HaveOccurred())

			_, err = store.CreateTenant(ctx, "acme", "Another Acme")
			Expect(err).To(MatchError(enablement.ErrTenantExists))
		})
	})

	Describe("SetEnabled", func() {
		It("round-trips enablement state", func() {
			ctx := context.Background()

			_, err := store.CreateTenant(ctx, "acme", "Acme Corp")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.SetEnabled(ctx, "acme", "payments", true)).To(Succeed())
			Expect(store.SetEnabled(ctx, "acme", "ecommerce", true)).To(Succeed())

			enabled, err := store.IsEnabled(ctx, "acme", "payments")
			Expect(err).NotTo(HaveOccurred())
			Expect(enabled).To(BeTrue())

			plugins, err := store.EnabledPlugins(ctx, "acme")
			Expect(err).NotTo(HaveOccurred())
			Expect(plugins).To(Equal([]string{"ecommerce", "payments"}))
		})

		It("upserts on repeated calls", func() {
			ctx := context.Background()

			_, err := store.CreateTenant(ctx, "acme", "Acme Corp")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.SetEnabled(ctx, "acme", "payments", true)).To(Succeed())
			Expect(store.SetEnabled(ctx, "acme", "payments", false)).To(Succeed())

			enabled, err := store.IsEnabled(ctx, "acme", "payments")
			Expect(err).NotTo(HaveOccurred())
			Expect(enabled).To(BeFalse())

			plugins, err := store.EnabledPlugins(ctx, "acme")
			Expect(err).NotTo(HaveOccurred())
			Expect(plugins).To(BeEmpty())
		})

		It("fails for an unknown tenant", func() {
			err := store.SetEnabled(context.Background(), "ghost", "payments", true)
			Expect(err).To(MatchError(enablement.ErrTenantNotFound))
		})
	})

	Describe("EnabledPlugins", func() {
		It("fails for an unknown tenant", func() {
			_, err := store.EnabledPlugins(context.Background(), "ghost")
			Expect(err).To(MatchError(enablement.ErrTenantNotFound))
		})
	})

	Describe("IsEnabled", func() {
		It("treats missing rows as disabled", func() {
			ctx := context.Background()

			_, err := store.CreateTenant(ctx, "acme", "Acme Corp")
			Expect(err).NotTo(HaveOccurred())

			enabled, err := store.IsEnabled(ctx, "acme", "payments")
			Expect(err).NotTo(HaveOccurred())
			Expect(enabled).To(BeFalse())
		})
	})
})

var _ = Describe("Migrator", func() {
	It("reports the applied version", func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("bizbox_test"),
			postgres.WithUsername("bizbox"),
			postgres.WithPassword("bizbox"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = container.Terminate(ctx) }()

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := enablement.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		Expect(migrator.Up()).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())

		Expect(migrator.Down()).To(Succeed())

		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(0)))
	})
})

var _ = Describe("Connect", func() {
	It("pings and returns a usable pool", func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("bizbox_test"),
			postgres.WithUsername("bizbox"),
			postgres.WithPassword("bizbox"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = container.Terminate(ctx) }()

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		var pool *pgxpool.Pool
		pool, err = enablement.Connect(ctx, connStr, 10*time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		Expect(pool.Ping(ctx)).To(Succeed())
	})
})
