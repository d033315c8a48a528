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

// Package store holds the in-memory swarm state: torrents, peers, users,
// groups, the passkey/info_hash indexes and the small ancillary sets used
// by the announce pipeline.
package store

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
)

const InfoHashSize = 20

// InfoHash is the 20 byte SHA-1 hash identifying a torrent.
type InfoHash [InfoHashSize]byte

var (
	errWrongHashSize = errors.New("store: wrong info_hash size")
	errNilHash       = errors.New("store: nil info_hash")
	errInvalidType   = errors.New("store: invalid column type")
)

func InfoHashFromBytes(buf []byte) (h InfoHash) {
	if len(buf) != InfoHashSize {
		return
	}

	copy(h[:], buf)

	return h
}

func InfoHashFromHex(s string) (h InfoHash, err error) {
	if len(s) != InfoHashSize*2 {
		return h, errWrongHashSize
	}

	if _, err = hex.Decode(h[:], []byte(s)); err != nil {
		return h, err
	}

	return h, nil
}

//goland:noinspection GoMixedReceiverTypes
func (h InfoHash) String() string {
	var buf [InfoHashSize * 2]byte

	hex.Encode(buf[:], h[:])

	return string(buf[:])
}

//goland:noinspection GoMixedReceiverTypes
func (h *InfoHash) Scan(src any) error {
	if src == nil {
		return nil
	} else if buf, ok := src.([]byte); ok {
		if len(buf) == 0 {
			return errNilHash
		}

		if len(buf) != InfoHashSize {
			return errWrongHashSize
		}

		copy((*h)[:], buf)

		return nil
	}

	return errInvalidType
}

//goland:noinspection GoMixedReceiverTypes
func (h InfoHash) Value() (driver.Value, error) {
	return h[:], nil
}

const PeerIDSize = 20

// PeerID is the client-assigned opaque peer identifier.
// https://www.bittorrent.org/beps/bep_0020.html
type PeerID [PeerIDSize]byte

var errWrongPeerIDSize = errors.New("store: wrong peer_id size")

func PeerIDFromBytes(buf []byte) (id PeerID) {
	if len(buf) != PeerIDSize {
		return
	}

	copy(id[:], buf)

	return id
}

//goland:noinspection GoMixedReceiverTypes
func (id *PeerID) Scan(src any) error {
	if src == nil {
		return nil
	} else if buf, ok := src.([]byte); ok {
		if len(buf) != PeerIDSize {
			return errWrongPeerIDSize
		}

		copy((*id)[:], buf)

		return nil
	}

	return errInvalidType
}

//goland:noinspection GoMixedReceiverTypes
func (id PeerID) Value() (driver.Value, error) {
	return id[:], nil
}

const PasskeySize = 32

// Passkey is the per-user secret embedded in the announce URL path.
type Passkey string

var errWrongPasskeySize = errors.New("store: wrong passkey size")

func PasskeyFromString(s string) (Passkey, error) {
	if len(s) != PasskeySize {
		return "", errWrongPasskeySize
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return "", errWrongPasskeySize
		}
	}

	return Passkey(s), nil
}
