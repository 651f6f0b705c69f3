// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "corehub"

// Registry is the process-wide Prometheus registry. It is exported so
// callers that embed the server in a larger process can merge it with
// their own registry rather than being forced onto the global default.
var Registry = prometheus.NewRegistry()

var (
	// ActionsAccepted counts actions that passed the filter and were
	// applied to a context's store.
	ActionsAccepted = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "actions_accepted_total",
		Help:      "Actions accepted by the filter and applied to the store.",
	}, []string{"context"})

	// ActionsRejected counts actions that the filter refused (reject,
	// needAuth or badAuth). The id policy reassigns ids and is not counted.
	ActionsRejected = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "actions_rejected_total",
		Help:      "Actions rejected by the filter.",
	}, []string{"context", "reason"})

	// ActionsRewritten counts actions whose payload the filter rewrote
	// before application. Id reassignments are not counted.
	ActionsRewritten = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "actions_rewritten_total",
		Help:      "Actions rewritten by the filter before application.",
	}, []string{"context"})

	// FanoutMessages counts messages fanned out to live sessions.
	FanoutMessages = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "fanout_messages_total",
		Help:      "Messages fanned out to live client sessions.",
	}, []string{"context"})

	// HydrateDuration observes how long a context's Hydrate call takes.
	HydrateDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "hydrate_duration_seconds",
		Help:      "Time spent hydrating a context store.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"context"})

	// ActiveContexts reports the number of live, hydrated contexts.
	ActiveContexts = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "active_contexts",
		Help:      "Number of contexts currently hydrated and running.",
	})

	// ActiveSessions reports the number of currently connected client
	// sessions, across all contexts.
	ActiveSessions = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active_sessions",
		Help:      "Number of client sessions currently connected.",
	})

	// WorkerQueueDepth reports the number of tasks queued on a context's
	// serial worker.
	WorkerQueueDepth = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "queue_depth",
		Help:      "Number of tasks currently queued on a context worker.",
	}, []string{"context"})
)
