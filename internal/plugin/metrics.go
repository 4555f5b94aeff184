// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package plugin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for plugin registry operations.
var (
	// registrationsTotal counts successful plugin registrations.
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizbox_plugin_registrations_total",
		Help: "Total number of successful plugin registrations",
	})

	// initializationsTotal counts initialization attempts by outcome.
	initializationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizbox_plugin_initializations_total",
		Help: "Total number of plugin initialization attempts by outcome",
	}, []string{"outcome"})

	// hookExecutionsTotal counts hook handler invocations by hook and outcome.
	hookExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizbox_plugin_hook_executions_total",
		Help: "Total number of hook handler invocations",
	}, []string{"hook", "outcome"})

	// eventsEmittedTotal counts emitted events by name.
	eventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizbox_plugin_events_emitted_total",
		Help: "Total number of events emitted through the registry",
	}, []string{"event"})

	// pluginsByStatus tracks how many plugins are in each lifecycle state.
	pluginsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bizbox_plugins_by_status",
		Help: "Number of registered plugins by lifecycle status",
	}, []string{"status"})
)
