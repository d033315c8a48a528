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
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

var errUnsupportedVersion = errors.New("store: unsupported cache version")

func writeHeader(w io.Writer, n int, version uint64) (err error) {
	var varIntBuf [binary.MaxVarintLen64]byte

	if _, err = w.Write(varIntBuf[:binary.PutUvarint(varIntBuf[:], version)]); err != nil {
		return err
	}

	_, err = w.Write(varIntBuf[:binary.PutUvarint(varIntBuf[:], uint64(n))])

	return err
}

func readHeader(r readerAndByteReader, maxSupportedVersion uint64) (n int, version uint64, err error) {
	if version, err = binary.ReadUvarint(r); err != nil {
		return 0, 0, err
	}

	if version == 0 || version > maxSupportedVersion {
		return 0, version, errUnsupportedVersion
	}

	var records uint64
	if records, err = binary.ReadUvarint(r); err != nil {
		return 0, version, err
	}

	return int(records), version, nil
}

// WriteTorrents dumps the torrent store to a warm-restart cache file.
func WriteTorrents(w io.Writer, torrents map[uint32]*Torrent) error {
	writer := bufio.NewWriterSize(w, 64*1024)
	defer func() { _ = writer.Flush() }()

	if err := writeHeader(writer, len(torrents), TorrentCacheVersion); err != nil {
		return err
	}

	buf := make([]byte, 0, 4096)

	for id, t := range torrents {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint32(buf, id)
		buf = append(buf, t.InfoHash[:]...)
		buf = t.Append(buf)

		if _, err := writer.Write(buf); err != nil {
			return err
		}
	}

	return nil
}

func LoadTorrents(r io.Reader, torrents map[uint32]*Torrent, byHash map[InfoHash]uint32) error {
	reader := bufio.NewReader(r)

	n, version, err := readHeader(reader, TorrentCacheVersion)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		var id uint32

		if err := binary.Read(reader, binary.LittleEndian, &id); err != nil {
			return err
		}

		var h InfoHash
		if _, err := io.ReadFull(reader, h[:]); err != nil {
			return err
		}

		t := NewTorrent(id, h)
		if err := t.Load(version, reader); err != nil {
			return err
		}

		torrents[id] = t
		byHash[h] = id
	}

	return nil
}

// WriteUsers dumps the user store to a warm-restart cache file. Rate
// collections are deliberately not persisted; they restart empty,
// which only makes the first post-restart window more permissive.
func WriteUsers(w io.Writer, users map[uint32]*User) error {
	writer := bufio.NewWriterSize(w, 64*1024)
	defer func() { _ = writer.Flush() }()

	if err := writeHeader(writer, len(users), UserCacheVersion); err != nil {
		return err
	}

	buf := make([]byte, 0, 256)

	for id, u := range users {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint32(buf, id)
		buf = append(buf, []byte(u.Passkey)...)
		buf = binary.LittleEndian.AppendUint32(buf, u.GroupID)

		for _, b := range [4]bool{u.Deleted, u.CanDownload, u.IsDonor, u.IsLifetime} {
			if b {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}

		if _, err := writer.Write(buf); err != nil {
			return err
		}
	}

	return nil
}

func LoadUsers(r io.Reader, users map[uint32]*User, byPasskey map[Passkey]uint32) error {
	reader := bufio.NewReader(r)

	n, _, err := readHeader(reader, UserCacheVersion)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		u := &User{}

		if err := binary.Read(reader, binary.LittleEndian, &u.ID); err != nil {
			return err
		}

		passkeyBuf := make([]byte, PasskeySize)
		if _, err := io.ReadFull(reader, passkeyBuf); err != nil {
			return err
		}

		u.Passkey = Passkey(passkeyBuf)

		if err := binary.Read(reader, binary.LittleEndian, &u.GroupID); err != nil {
			return err
		}

		var flags [4]bool
		for i := range flags {
			if err := binary.Read(reader, binary.LittleEndian, &flags[i]); err != nil {
				return err
			}
		}

		u.Deleted, u.CanDownload, u.IsDonor, u.IsLifetime = flags[0], flags[1], flags[2], flags[3]

		users[u.ID] = u
		byPasskey[u.Passkey] = u.ID
	}

	return nil
}
