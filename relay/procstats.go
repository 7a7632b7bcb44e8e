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

package relay

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// processStats reports this relay process's own CPU and memory usage,
// surfaced on the /scan snapshot so a scanner can tell a relay under
// load from one that has simply gone quiet. Either value is zero if
// gopsutil cannot read /proc (e.g. a restricted container).
func processStats() (cpuPercent, memoryMB float64) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, 0
	}
	cpuPercent, _ = proc.CPUPercent()
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		memoryMB = float64(mem.RSS) / (1024 * 1024)
	}
	return cpuPercent, memoryMB
}
