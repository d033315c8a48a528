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
	"bytes"
	"strconv"
)

func bencodeString(buf *bytes.Buffer, s string) {
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(':')
	buf.WriteString(s)
}

func bencodeBytes(buf *bytes.Buffer, b []byte) {
	buf.WriteString(strconv.Itoa(len(b)))
	buf.WriteByte(':')
	buf.Write(b)
}

func bencodeInt(buf *bytes.Buffer, v int64) {
	buf.WriteByte('i')
	buf.WriteString(strconv.FormatInt(v, 10))
	buf.WriteByte('e')
}

// encodeFailure renders a rejected announce as a bencoded failure
// dictionary; HTTP status is always 200 (§4.1.3).
func encodeFailure(err *Error) []byte {
	var buf bytes.Buffer

	buf.WriteByte('d')
	bencodeString(&buf, "failure reason")
	bencodeString(&buf, err.Reason)
	bencodeString(&buf, "interval")
	bencodeInt(&buf, int64(err.Interval.Seconds()))
	bencodeString(&buf, "min interval")
	bencodeInt(&buf, int64(err.Interval.Seconds()))
	buf.WriteByte('e')

	return buf.Bytes()
}

// responseFields carries everything §4.1.3 needs to render the success
// dictionary, already decided under the torrent lock.
type responseFields struct {
	Complete       uint32
	Downloaded     uint32
	Incomplete     uint32
	Interval       int64
	MinInterval    int64
	PeersIPv4      []byte
	PeersIPv6      []byte
	WarningMessage string
	HasWarning     bool
}

// encodeSuccess renders the dictionary with keys in lexicographic
// order, matching the bencode canonical form every client parses.
func encodeSuccess(f responseFields) []byte {
	var buf bytes.Buffer

	buf.WriteByte('d')

	bencodeString(&buf, "complete")
	bencodeInt(&buf, int64(f.Complete))

	bencodeString(&buf, "downloaded")
	bencodeInt(&buf, int64(f.Downloaded))

	bencodeString(&buf, "incomplete")
	bencodeInt(&buf, int64(f.Incomplete))

	bencodeString(&buf, "interval")
	bencodeInt(&buf, f.Interval)

	bencodeString(&buf, "min interval")
	bencodeInt(&buf, f.MinInterval)

	bencodeString(&buf, "peers")
	bencodeBytes(&buf, f.PeersIPv4)

	if len(f.PeersIPv6) > 0 {
		bencodeString(&buf, "peers6")
		bencodeBytes(&buf, f.PeersIPv6)
	}

	if f.HasWarning {
		bencodeString(&buf, "warning message")
		bencodeString(&buf, f.WarningMessage)
	}

	buf.WriteByte('e')

	return buf.Bytes()
}
