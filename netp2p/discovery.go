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

package netp2p

import (
	"encoding/json"
	"net"
	"time"

	"github.com/wisp-mesh/wisp/internal/logger"
	"github.com/wisp-mesh/wisp/internal/metrics"
)

// maxDiscoveryDatagram bounds a single UDP discovery packet per
// spec.md §6.
const maxDiscoveryDatagram = 2048

// StartDiscovery joins the configured LAN multicast group, announces
// this node's presence every AnnounceEvery, and dials any novel
// announced peer-id. It runs until Close stops the node.
func (n *Node) StartDiscovery() error {
	addr, err := net.ResolveUDPAddr("udp4", n.cfg.MulticastAddr)
	if err != nil {
		return err
	}

	listenConn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return err
	}
	listenConn.SetReadBuffer(maxDiscoveryDatagram * 8)

	sendConn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		listenConn.Close()
		return err
	}

	n.wg.Add(2)
	go n.discoveryListenLoop(listenConn)
	go n.discoveryAnnounceLoop(sendConn)
	return nil
}

func (n *Node) discoveryAnnounceLoop(conn *net.UDPConn) {
	defer n.wg.Done()
	defer conn.Close()

	ticker := time.NewTicker(n.cfg.AnnounceEvery)
	defer ticker.Stop()

	announce := func() {
		f := Frame{
			Type:    FrameDiscover,
			Name:    n.cfg.Name,
			Tag:     n.cfg.Tag,
			Pubkey:  n.cfg.PubkeyHex,
			TCPPort: n.boundPort,
		}
		data, err := json.Marshal(f)
		if err != nil {
			return
		}
		if _, err := conn.Write(data); err == nil {
			metrics.DiscoveryAnnouncements.Inc()
		}
	}

	announce()
	for {
		select {
		case <-ticker.C:
			announce()
		case <-n.stop:
			return
		}
	}
}

func (n *Node) discoveryListenLoop(conn *net.UDPConn) {
	defer n.wg.Done()
	defer conn.Close()

	go func() {
		<-n.stop
		conn.Close()
	}()

	buf := make([]byte, maxDiscoveryDatagram)
	for {
		read, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-n.stop:
				return
			default:
				return
			}
		}
		var f Frame
		if err := json.Unmarshal(buf[:read], &f); err != nil {
			continue
		}
		if f.Type != FrameDiscover || f.Pubkey == n.cfg.PubkeyHex {
			continue
		}
		n.handleDiscovered(f, src.IP.String())
	}
}

func (n *Node) handleDiscovered(f Frame, host string) {
	peerID := f.Name + "#" + f.Tag
	connected := n.connectedPeerIDs()
	if _, ok := connected[peerID]; ok {
		return
	}
	n.log.Debug("discovered novel peer", logger.String("peer", peerID), logger.String("host", host))
	go func() {
		_ = n.Connect(host, f.TCPPort)
	}()
}
