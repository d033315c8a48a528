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
	"sync"
	"sync/atomic"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Status is the moderation state of a Torrent. Announces only succeed
// against Approved torrents.
type Status uint8

const (
	StatusPending Status = iota
	StatusApproved
	StatusRejected
	StatusPostponed
	StatusUnknown
)

// Torrent is keyed by torrent_id in the TorrentStore. Scalar fields are
// atomics so admin reads (GET /torrents/{id}) never need the peer lock;
// the peer map itself is guarded by peerLock because every announce
// mutates it.
type Torrent struct {
	ID       uint32
	InfoHash InfoHash

	Status    atomic.Uint32 // Status
	IsDeleted atomic.Bool

	Seeders        atomic.Uint32
	Leechers       atomic.Uint32
	TimesCompleted atomic.Uint32

	// UploadFactor, DownloadFactor are percentages: 0 = freeleech, 100 =
	// normal, 200 = double upload.
	UploadFactor   atomic.Uint32
	DownloadFactor atomic.Uint32

	peerLock sync.Mutex
	Peers    map[PeerKey]*Peer
}

func NewTorrent(id uint32, infoHash InfoHash) *Torrent {
	t := &Torrent{
		ID:       id,
		InfoHash: infoHash,
		Peers:    make(map[PeerKey]*Peer),
	}
	t.UploadFactor.Store(100)
	t.DownloadFactor.Store(100)

	return t
}

func (t *Torrent) PeerLock() {
	t.peerLock.Lock()
}

func (t *Torrent) PeerUnlock() {
	t.peerLock.Unlock()
}

// IsApproved is a convenience read of Status without exposing the
// numeric encoding to callers.
func (t *Torrent) IsApproved() bool {
	return Status(t.Status.Load()) == StatusApproved
}

// TorrentCacheVersion distinguishes on-disk cache layouts. Bump when
// fields on Torrent or Peer change shape.
const TorrentCacheVersion = 1

// TorrentCacheFile is the filename used by the periodic serializer.
var TorrentCacheFile = "torrent-cache"

type readerAndByteReader interface {
	io.Reader
	io.ByteReader
}

func (t *Torrent) Load(_ uint64, reader readerAndByteReader) (err error) {
	var (
		status                       uint8
		isDeleted                    bool
		seeders, leechers, completed uint32
		upFactor, downFactor         uint32
	)

	var n uint64
	if n, err = binary.ReadUvarint(reader); err != nil {
		return err
	}

	t.Peers = make(map[PeerKey]*Peer, n)

	var k PeerKey

	for i := uint64(0); i < n; i++ {
		if _, err = io.ReadFull(reader, k[:]); err != nil {
			return err
		}

		p := &Peer{}
		if err = p.Load(reader); err != nil {
			return err
		}

		t.Peers[k] = p
	}

	if err = binary.Read(reader, binary.LittleEndian, &status); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &isDeleted); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &seeders); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &leechers); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &completed); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &upFactor); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &downFactor); err != nil {
		return err
	}

	t.Status.Store(uint32(status))
	t.IsDeleted.Store(isDeleted)
	t.Seeders.Store(seeders)
	t.Leechers.Store(leechers)
	t.TimesCompleted.Store(completed)
	t.UploadFactor.Store(upFactor)
	t.DownloadFactor.Store(downFactor)

	return nil
}

func (t *Torrent) Append(preAllocatedBuffer []byte) (buf []byte) {
	buf = preAllocatedBuffer

	func() {
		t.PeerLock()
		defer t.PeerUnlock()

		buf = binary.AppendUvarint(buf, uint64(len(t.Peers)))

		for k, p := range t.Peers {
			buf = append(buf, k[:]...)
			buf = p.Append(buf)
		}
	}()

	buf = append(buf, uint8(t.Status.Load()))

	if t.IsDeleted.Load() {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = binary.LittleEndian.AppendUint32(buf, t.Seeders.Load())
	buf = binary.LittleEndian.AppendUint32(buf, t.Leechers.Load())
	buf = binary.LittleEndian.AppendUint32(buf, t.TimesCompleted.Load())
	buf = binary.LittleEndian.AppendUint32(buf, t.UploadFactor.Load())
	buf = binary.LittleEndian.AppendUint32(buf, t.DownloadFactor.Load())

	return buf
}

// TorrentTestCompareOptions lets package tests compare Torrents with
// go-cmp despite the embedded atomics and unexported mutex.
var TorrentTestCompareOptions = []cmp.Option{
	cmp.AllowUnexported(atomic.Uint32{}),
	cmp.AllowUnexported(atomic.Bool{}),
	cmpopts.IgnoreFields(Torrent{}, "peerLock"),
}
