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

package announce

import (
	"net/url"
	"strconv"
	"strings"

	"privateannounce/queue"
	"privateannounce/store"
)

// Query is the parsed, still-unvalidated-against-state form of an
// announce request's query string.
type Query struct {
	InfoHash   store.InfoHash
	PeerID     store.PeerID
	Port       uint16
	Uploaded   uint64
	Downloaded uint64
	Left       uint64
	Event      queue.Event
	NumWant    uint16
	HasNumWant bool
	Corrupt    *uint64
	Key        string
	Compact    bool
	NoPeerID   bool
	IP         string
	HasIP      bool
	IPv4       string
	HasIPv4    bool
}

// parseQuery mirrors the raw query-string walk the distilled source
// uses (single pass over '&'-delimited key=value pairs, percent
// decoding each side individually), since info_hash and peer_id are
// opaque byte strings rather than valid UTF-8 in general.
func parseQuery(raw string) (*Query, error) {
	var (
		q             Query
		haveInfoHash  bool
		multipleHash  bool
		havePeerID    bool
		havePort      bool
		haveUploaded  bool
		haveDownload  bool
		haveLeft      bool
		haveCompact   bool
		eventStr      string
	)

	for raw != "" {
		pair := raw
		if i := strings.IndexByte(pair, '&'); i >= 0 {
			pair, raw = pair[:i], pair[i+1:]
		} else {
			raw = ""
		}

		if pair == "" {
			continue
		}

		key := pair
		value := ""

		if i := strings.IndexByte(pair, '='); i >= 0 {
			key, value = pair[:i], pair[i+1:]
		}

		key, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fail("Invalid query string parameter.")
		}

		value, err = url.QueryUnescape(value)
		if err != nil {
			return nil, fail("Invalid query string value.")
		}

		switch key {
		case "info_hash":
			if haveInfoHash {
				multipleHash = true
				continue
			}

			if len(value) != store.InfoHashSize {
				return nil, errInvalidInfoHash
			}

			q.InfoHash = store.InfoHashFromBytes([]byte(value))
			haveInfoHash = true
		case "peer_id":
			if len(value) != store.PeerIDSize {
				return nil, errInvalidPeerID
			}

			q.PeerID = store.PeerIDFromBytes([]byte(value))
			havePeerID = true
		case "port":
			n, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return nil, fail("Invalid 'port' (must be greater than or equal to 0).")
			}

			q.Port = uint16(n)
			havePort = true
		case "uploaded":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fail("Invalid 'uploaded' (must be greater than or equal to 0).")
			}

			q.Uploaded = n
			haveUploaded = true
		case "downloaded":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fail("Invalid 'downloaded' (must be greater than or equal to 0).")
			}

			q.Downloaded = n
			haveDownload = true
		case "left":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fail("Invalid 'left' (must be greater than or equal to 0).")
			}

			q.Left = n
			haveLeft = true
		case "compact":
			haveCompact = true
			if value != "1" {
				return nil, errInvalidCompact
			}

			q.Compact = true
		case "event":
			eventStr = value
		case "numwant":
			n, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return nil, fail("Invalid 'numwant' (must be greater than or equal to 0).")
			}

			q.NumWant = uint16(n)
			q.HasNumWant = true
		case "corrupt":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				q.Corrupt = &n
			}
		case "key":
			q.Key = value
		case "no_peer_id":
			q.NoPeerID = value == "1"
		case "ip":
			q.IP = value
			q.HasIP = true
		case "ipv4":
			q.IPv4 = value
			q.HasIPv4 = true
		}

		if raw == "" {
			break
		}
	}

	if !haveCompact {
		// The distilled source requires compact=1 explicitly; this
		// tracker is looser and treats an absent key the same as
		// present-and-1, matching every still-shipping client that
		// sends it unconditionally.
		q.Compact = true
	}

	if !haveInfoHash {
		return nil, errMissingInfoHash
	}

	if multipleHash {
		return nil, errMultipleInfoHash
	}

	if !havePeerID {
		return nil, errMissingPeerID
	}

	if !havePort {
		return nil, errMissingPort
	}

	if !haveUploaded {
		return nil, errMissingUploaded
	}

	if !haveDownload {
		return nil, errMissingDownloaded
	}

	if !haveLeft {
		return nil, errMissingLeft
	}

	switch eventStr {
	case "", "empty", "paused":
		q.Event = queue.EventEmpty
	case "started":
		q.Event = queue.EventStarted
	case "stopped":
		q.Event = queue.EventStopped
	case "completed":
		q.Event = queue.EventCompleted
	default:
		return nil, errUnsupportedEvent
	}

	return &q, nil
}
