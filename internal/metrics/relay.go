// Copyright (C) 2025 wisp-mesh
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

var (
	// RelaySessions reports sessions currently attached to a relay server.
	RelaySessions = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "sessions",
			Help:      "Current number of sessions attached to this relay server",
		},
	)

	// RelayForwarded counts envelopes the relay forwarded between sessions.
	RelayForwarded = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "forwarded_total",
			Help:      "Total number of opaque envelopes forwarded by the relay",
		},
	)

	// RelayRateLimited counts frames dropped for exceeding the per-session rate limit.
	RelayRateLimited = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "rate_limited_total",
			Help:      "Total number of frames dropped for exceeding the per-session rate limit",
		},
	)

	// RelayKeyExchanges counts completed room-key exchanges, labeled by outcome.
	RelayKeyExchanges = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "key_exchanges_total",
			Help:      "Total number of room-key exchanges, labeled by outcome",
		},
		[]string{"outcome"}, // alone, shared, timeout_self_generated
	)
)
