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

// Package warning carries the non-fatal conditions an announce can run
// into. A warning never aborts the request outright, but it always
// zeroes the peer counts and suppresses the peer list in the response
// (see Collection.IntoMessage and its caller in the announce pipeline).
package warning

import "fmt"

// Warning is one of a fixed set of announce warning conditions.
type Warning uint8

const (
	// RateLimitExceeded fires when the same peer announces again
	// within announce_min_enforced of its last announce. It is silent: most BitTorrent
	// clients retry aggressively on a visible rate-limit message,
	// making the problem worse, so the response looks like an
	// ordinary (empty) success instead.
	RateLimitExceeded Warning = iota
	HitDownloadSlotLimit
	ConnectivityIssueDetected
	// StoppedPeerDoesntExist fires when a `stopped` event arrives for a
	// peer the in-memory store never saw an announce for. Unlike
	// RateLimitExceeded, this one is visible: it is useful for debugging
	// client behaviour and isn't subject to the same retry-storm risk.
	StoppedPeerDoesntExist
)

func (w Warning) String() string {
	switch w {
	case RateLimitExceeded:
		return "Rate limit exceeded. Please wait."
	case HitDownloadSlotLimit:
		return "Download slot limit reached"
	case ConnectivityIssueDetected:
		return "Connectivity issue detected. Enable port-forwarding to resolve."
	case StoppedPeerDoesntExist:
		return "This peer is not registered with this torrent"
	default:
		return fmt.Sprintf("warning(%d)", uint8(w))
	}
}

// IsSilent reports whether w should be used only to zero/suppress the
// response, never appended to the visible warning message.
func (w Warning) IsSilent() bool {
	return w == RateLimitExceeded
}

const separator = "; "

// maxWarningLen bounds a single rendered warning; some clients truncate
// or reject overly long tracker warning fields.
const maxWarningLen = 64 + len(separator)

// Collection accumulates the warnings raised while processing a single
// announce. The zero value is ready to use.
type Collection struct {
	warnings []Warning
}

func (c *Collection) Add(w Warning) {
	c.warnings = append(c.warnings, w)
}

func (c *Collection) IsEmpty() bool {
	return len(c.warnings) == 0
}

// Has reports whether w was recorded, silent or not.
func (c *Collection) Has(w Warning) bool {
	for _, existing := range c.warnings {
		if existing == w {
			return true
		}
	}

	return false
}

// MaxByteLength upper-bounds the rendered message so callers can
// pre-size a buffer without building the string first.
func (c *Collection) MaxByteLength() int {
	return len(c.warnings) * maxWarningLen
}

// IntoMessage renders the non-silent warnings into the bencoded
// response's "warning message" field, or returns ("", false) if every
// recorded warning is silent (or none were recorded at all).
func (c *Collection) IntoMessage() (string, bool) {
	if len(c.warnings) == 0 {
		return "", false
	}

	buf := make([]byte, 0, c.MaxByteLength())

	for _, w := range c.warnings {
		if w.IsSilent() {
			continue
		}

		buf = append(buf, w.String()...)
		buf = append(buf, separator...)
	}

	if len(buf) == 0 {
		return "", false
	}

	buf = buf[:len(buf)-len(separator)]

	return string(buf), true
}
