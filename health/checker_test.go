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

package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReportsHealthyAndUnhealthy(t *testing.T) {
	hc := NewHealthChecker(0)
	hc.RegisterCheck("peers", PeerCountHealthCheck(func() int { return 0 }))

	result, err := hc.Check(context.Background(), "peers")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, result.Status)

	hc.UnregisterCheck("peers")
	hc.RegisterCheck("peers", PeerCountHealthCheck(func() int { return 3 }))
	hc.ClearCache()

	result, err = hc.Check(context.Background(), "peers")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestCheckCachesResultWithinTTL(t *testing.T) {
	calls := 0
	hc := NewHealthChecker(0)
	hc.SetCacheTTL(1000000000) // 1s, large enough not to expire mid-test
	hc.RegisterCheck("counter", func(ctx context.Context) error {
		calls++
		return nil
	})

	_, err := hc.Check(context.Background(), "counter")
	require.NoError(t, err)
	_, err = hc.Check(context.Background(), "counter")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestGetOverallStatusAggregatesChecks(t *testing.T) {
	hc := NewHealthChecker(0)
	hc.RegisterCheck("store", StoreHealthCheck(func() int { return 10 }, 100))
	hc.RegisterCheck("relay", RelayHealthCheck(func() bool { return false }))

	assert.Equal(t, StatusUnhealthy, hc.GetOverallStatus(context.Background()))
}
