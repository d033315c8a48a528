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
	"net/http"
	"strings"
)

// suspiciousHeaders are set by ordinary browsers and crawlers but never
// by a BitTorrent client; their presence is a strong signal this isn't
// a real announce (§4.1 step 2).
var suspiciousHeaders = []string{
	"Accept-Language",
	"Referer",
	"Accept-Charset",
	"Want-Digest",
}

// browserTokens are case-insensitive substrings of a User-Agent that
// mark it as a browser, crawler or bot rather than a torrent client
// (§4.1 step 3).
var browserTokens = []string{
	"mozilla", "browser", "chrome", "safari", "applewebkit",
	"opera", "links", "lynx", "bot", "unknown",
}

const maxUserAgentLen = 64

func validateHeaders(header http.Header) *Error {
	for _, h := range suspiciousHeaders {
		if header.Get(h) != "" {
			return errAbnormalAccess
		}
	}

	return nil
}

func validateUserAgent(userAgent string) *Error {
	if userAgent == "" {
		return errMissingUserAgent
	}

	if len(userAgent) > maxUserAgentLen {
		return errUserAgentTooLong
	}

	lower := strings.ToLower(userAgent)
	for _, token := range browserTokens {
		if strings.Contains(lower, token) {
			return errNotAClient
		}
	}

	return nil
}

// clientIP resolves the announcing peer's address per §6: the last
// value of the last occurrence of the configured reverse-proxy header,
// comma-split and trimmed, falling back to the connecting socket.
func clientIP(header http.Header, remoteAddr, proxyHeader string) string {
	if proxyHeader != "" {
		values := header.Values(proxyHeader)
		if len(values) > 0 {
			last := values[len(values)-1]
			parts := strings.Split(last, ",")

			return strings.TrimSpace(parts[len(parts)-1])
		}
	}

	if i := strings.LastIndexByte(remoteAddr, ':'); i != -1 {
		return remoteAddr[:i]
	}

	return remoteAddr
}
