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

// Package announce implements the full request/response pipeline behind
// GET /announce/{passkey}: query validation, the peer state transition,
// peer-list selection, bencoded response encoding and the accounting
// that feeds the update queues.
package announce

import (
	"fmt"
	"time"
)

// Error is a rejected announce: Reason is written verbatim into the
// bencoded "failure reason" field, Interval controls how soon a client
// should retry.
type Error struct {
	Reason   string
	Interval time.Duration
}

func (e *Error) Error() string {
	return e.Reason
}

const (
	shortRetry = 30 * time.Second
	longRetry  = 5400 * time.Second
)

func fail(reason string) *Error {
	return &Error{Reason: reason, Interval: longRetry}
}

func failf(interval time.Duration, format string, args ...interface{}) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...), Interval: interval}
}

var (
	errMissingInfoHash     = fail("Query parameter 'info_hash' is missing.")
	errMultipleInfoHash    = fail("Malformed request - multiple info_hash values provided.")
	errInvalidInfoHash     = fail("Invalid 'info_hash'.")
	errMissingPeerID       = fail("Query parameter 'peer_id' is missing.")
	errInvalidPeerID       = fail("Invalid 'peer_id'.")
	errMissingPort         = fail("Query parameter 'port' is missing.")
	errMissingUploaded     = fail("Query parameter 'uploaded' is missing.")
	errMissingDownloaded   = fail("Query parameter 'downloaded' is missing.")
	errMissingLeft         = fail("Query parameter 'left' is missing.")
	errInvalidCompact      = fail("Your client does not support compact announces.")
	errUnsupportedEvent    = fail("Unsupported 'event' type.")
	errAbnormalAccess      = fail("Abnormal access blocked.")
	errMissingUserAgent    = fail("Invalid user agent.")
	errUserAgentTooLong    = fail("The user agent of this client is too long.")
	errBlacklistedClient   = fail("Client is not acceptable. Please check our blacklist.")
	errNotAClient          = fail("Browser, crawler or cheater is not allowed.")
	errInvalidPasskey      = fail("Invalid passkey.")
	errPasskeyNotFound     = fail("Passkey does not exist. Please re-download the .torrent file.")
	errUserNotFound        = fail("User does not exist. Please re-download the .torrent file.")
	errDownloadRevoked     = fail("Your downloading privileges have been disabled.")
	errInfoHashNotFound    = fail("InfoHash not found.")
	errTorrentNotFound     = fail("Torrent not found.")
	errTorrentDeleted      = fail("Torrent has been deleted.")
	errGroupNotFound       = fail("Group not found.")
	errInternalTrackerError = fail("Internal tracker error.")
)

func errBlacklistedPort(port uint16) *Error {
	return failf(longRetry, "Illegal port: %d. Port should be between 6881-64999.", port)
}

func errGroupNotEnabled(slug string) *Error {
	return failf(longRetry, "Your account is not enabled. (Current: %s).", slug)
}

func errPeersPerTorrentLimit(n int) *Error {
	return failf(longRetry, "You already have %d peers on this torrent. Ignoring.", n)
}

func errModeration(reason string) *Error {
	return &Error{Reason: reason, Interval: shortRetry}
}
