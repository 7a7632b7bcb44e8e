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
	// PeersConnected reports the number of peers currently in the LIVE state.
	PeersConnected = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "connected",
			Help:      "Current number of peers in the LIVE connection state",
		},
	)

	// PeerConnects counts successful inbound and outbound handshakes.
	PeerConnects = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "connects_total",
			Help:      "Total number of peer connections established, labeled by direction",
		},
		[]string{"direction"}, // inbound, outbound
	)

	// PeerDisconnects counts connection teardowns by reason.
	PeerDisconnects = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "disconnects_total",
			Help:      "Total number of peer disconnections, labeled by reason",
		},
		[]string{"reason"}, // timeout, read_failure, write_failure
	)

	// DiscoveryAnnouncements counts outbound LAN multicast announcements.
	DiscoveryAnnouncements = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "announcements_total",
			Help:      "Total number of LAN multicast discovery announcements sent",
		},
	)
)
