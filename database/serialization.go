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

package database

import (
	"io"
	"os"
	"time"

	"privateannounce/collectors"
	"privateannounce/log"
	"privateannounce/store"
)

// Serialize dumps the torrent and user stores to their warm-restart
// cache files using store's own binary format (store/serialize.go),
// so a restart between two reload passes can skip straight back to a
// close approximation of the in-memory swarm state rather than
// waiting on the next full database reload. This replaces the
// original gob-based cache with the store package's own compact,
// versioned binary encoding.
func Serialize(torrents *store.TorrentStore, users *store.UserStore) error {
	start := time.Now()

	if err := serializeTo(store.TorrentCacheFile, torrents.Snapshot); err != nil {
		log.Error.Printf("Failed to serialize torrent cache: %s", err)
		log.WriteStack()

		return err
	}

	if err := serializeTo(store.UserCacheFile, users.Snapshot); err != nil {
		log.Error.Printf("Failed to serialize user cache: %s", err)
		log.WriteStack()

		return err
	}

	elapsed := time.Since(start)
	collectors.UpdateSerializationTime(elapsed)
	log.Info.Printf("Serialized torrent and user caches (%s)", elapsed.String())

	return nil
}

func serializeTo(path string, write func(w io.Writer) error) error {
	f, err := os.OpenFile(path+".tmp", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	if err = write(f); err != nil {
		_ = f.Close()
		return err
	}

	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(path+".tmp", path)
}

// Deserialize loads the torrent and user stores from their
// warm-restart cache files, logging a warning and skipping the rest
// if either is absent or unreadable (a
// fresh deployment has neither, and the subsequent reload fills the
// stores in from the database regardless).
func Deserialize(torrents *store.TorrentStore, users *store.UserStore) {
	start := time.Now()

	if err := deserializeFrom(store.TorrentCacheFile, torrents.LoadSnapshot); err != nil {
		log.Warning.Printf("Torrent cache unavailable, skipping warm restart: %s", err)
		return
	}

	if err := deserializeFrom(store.UserCacheFile, users.LoadSnapshot); err != nil {
		log.Warning.Printf("User cache unavailable, skipping warm restart: %s", err)
		return
	}

	log.Info.Printf("Loaded %d torrents and %d users from warm-restart cache (%s)",
		torrents.Len(), users.Len(), time.Since(start).String())
}

func deserializeFrom(path string, load func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return load(f)
}
