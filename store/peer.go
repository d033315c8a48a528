/*
 * This file is part of Chihaya.
 *
 * Chihaya is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * Chihaya is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with Chihaya.  If not, see <http://www.gnu.org/licenses/>.
 */

package store

import (
	"encoding/binary"
	"io"
	"net"
)

// PeerKey composes the owning user's id with the client peer id so a
// torrent's peer map can be keyed on a single comparable value.
type PeerKey [4 + PeerIDSize]byte

func NewPeerKey(userID uint32, peerID PeerID) (k PeerKey) {
	binary.LittleEndian.PutUint32(k[:], userID)
	copy(k[4:], peerID[:])

	return k
}

//goland:noinspection GoMixedReceiverTypes
func (k PeerKey) UserID() uint32 {
	return binary.LittleEndian.Uint32(k[:])
}

//goland:noinspection GoMixedReceiverTypes
func (k PeerKey) PeerID() (id PeerID) {
	copy(id[:], k[4:])

	return id
}

// Peer is one swarm member of one torrent. It is only ever read or
// mutated while the owning Torrent's peer lock is held.
type Peer struct {
	IP   net.IP
	Port uint16

	Uploaded   uint64
	Downloaded uint64
	Left       uint64

	UpdatedAt int64 // unix seconds, last announce that touched this peer

	TorrentID uint32
	UserID    uint32
	ID        PeerID

	IsSeeder      bool
	IsActive      bool
	IsVisible     bool
	IsConnectable bool
}

// IsIncludedInSeedList reports whether this peer should be offered to
// other clients as a seeder.
func (p *Peer) IsIncludedInSeedList() bool {
	return p.IsActive && p.IsVisible && p.IsConnectable && p.IsSeeder
}

// IsIncludedInLeechList reports whether this peer should be offered to
// other clients as a leecher.
func (p *Peer) IsIncludedInLeechList() bool {
	return p.IsActive && p.IsVisible && p.IsConnectable && !p.IsSeeder
}

// IsIncludedInPeerList is the general visibility predicate used for
// counting (§3 invariants): active, visible, and connectable whenever
// connectivity is required.
func (p *Peer) IsIncludedInPeerList(requireConnectivity bool) bool {
	return p.IsActive && p.IsVisible && (!requireConnectivity || p.IsConnectable)
}

// CompactIPv4 reports the 6-byte compact peer record, or false if this
// peer's address is not an IPv4 address.
func (p *Peer) CompactIPv4() (buf [6]byte, ok bool) {
	v4 := p.IP.To4()
	if v4 == nil {
		return buf, false
	}

	copy(buf[:4], v4)
	binary.BigEndian.PutUint16(buf[4:], p.Port)

	return buf, true
}

// CompactIPv6 reports the 18-byte compact peer record, or false if this
// peer's address is an IPv4 address.
func (p *Peer) CompactIPv6() (buf [18]byte, ok bool) {
	if p.IP.To4() != nil {
		return buf, false
	}

	v6 := p.IP.To16()
	if v6 == nil {
		return buf, false
	}

	copy(buf[:16], v6)
	binary.BigEndian.PutUint16(buf[16:], p.Port)

	return buf, true
}

func (p *Peer) Load(reader readerAndByteReader) (err error) {
	var ipLen uint8

	if err = binary.Read(reader, binary.LittleEndian, &ipLen); err != nil {
		return err
	}

	ip := make(net.IP, ipLen)

	if _, err = io.ReadFull(reader, ip); err != nil {
		return err
	}

	p.IP = ip

	if err = binary.Read(reader, binary.LittleEndian, &p.Port); err != nil {
		return err
	}

	if _, err = io.ReadFull(reader, p.ID[:]); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.Uploaded); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.Downloaded); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.Left); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.UpdatedAt); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.TorrentID); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.UserID); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.IsSeeder); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.IsActive); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &p.IsVisible); err != nil {
		return err
	}

	return binary.Read(reader, binary.LittleEndian, &p.IsConnectable)
}

func (p *Peer) Append(preAllocatedBuffer []byte) (buf []byte) {
	buf = preAllocatedBuffer

	buf = append(buf, uint8(len(p.IP)))
	buf = append(buf, p.IP...)
	buf = binary.LittleEndian.AppendUint16(buf, p.Port)
	buf = append(buf, p.ID[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, p.Uploaded)
	buf = binary.LittleEndian.AppendUint64(buf, p.Downloaded)
	buf = binary.LittleEndian.AppendUint64(buf, p.Left)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.UpdatedAt))
	buf = binary.LittleEndian.AppendUint32(buf, p.TorrentID)
	buf = binary.LittleEndian.AppendUint32(buf, p.UserID)

	for _, b := range [4]bool{p.IsSeeder, p.IsActive, p.IsVisible, p.IsConnectable} {
		if b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	return buf
}
