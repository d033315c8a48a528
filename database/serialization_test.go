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
	"os"
	"path/filepath"
	"testing"

	"privateannounce/rate"
	"privateannounce/store"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	dir := t.TempDir()

	prevTorrentFile, prevUserFile := store.TorrentCacheFile, store.UserCacheFile
	store.TorrentCacheFile = filepath.Join(dir, "torrent-cache")
	store.UserCacheFile = filepath.Join(dir, "user-cache")

	defer func() {
		store.TorrentCacheFile = prevTorrentFile
		store.UserCacheFile = prevUserFile
	}()

	torrents := store.NewTorrentStore()
	hash, _ := store.InfoHashFromHex("72ef20eddcb5438f73b6d88d78c4dfc1667b8938")
	torrent := torrents.Upsert(10, hash, store.StatusApproved, false, 100, 100)
	torrent.Seeders.Store(1)

	peerID := store.PeerIDFromBytes([]byte("-TEST01-0123456789ab"))
	torrent.PeerLock()
	torrent.Peers[store.NewPeerKey(12, peerID)] = &store.Peer{
		IP:         []byte{127, 0, 0, 1},
		Port:       6881,
		Uploaded:   100,
		Downloaded: 1000,
		TorrentID:  10,
		UserID:     12,
		ID:         peerID,
		IsSeeder:   true,
		IsActive:   true,
		IsVisible:  true,
	}
	torrent.PeerUnlock()

	users := store.NewUserStore()

	passkey, err := store.PasskeyFromString("mUztWMpBYNCqzmge6vGeEUGSrctJbgpQ")
	if err != nil {
		t.Fatalf("PasskeyFromString: %v", err)
	}

	defaultRates, _ := rate.NewCollectionFromString("60=180")

	users.Upsert(&store.User{
		ID:          12,
		GroupID:     1,
		Passkey:     passkey,
		CanDownload: true,
	}, defaultRates, defaultRates)

	if err := Serialize(torrents, users); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if _, err := os.Stat(store.TorrentCacheFile); err != nil {
		t.Fatalf("expected torrent cache file to exist: %v", err)
	}

	reloadedTorrents := store.NewTorrentStore()
	reloadedUsers := store.NewUserStore()

	Deserialize(reloadedTorrents, reloadedUsers)

	got, ok := reloadedTorrents.GetByInfoHash(hash)
	if !ok {
		t.Fatalf("expected torrent %s to round-trip", hash)
	}

	if got.Seeders.Load() != 1 {
		t.Errorf("Seeders = %d, want 1", got.Seeders.Load())
	}

	if len(got.Peers) != 1 {
		t.Fatalf("Peers = %d, want 1", len(got.Peers))
	}

	gotUser, ok := reloadedUsers.GetByPasskey(passkey)
	if !ok {
		t.Fatalf("expected user with passkey %s to round-trip", passkey)
	}

	if gotUser.ID != 12 || !gotUser.CanDownload {
		t.Errorf("unexpected user after round trip: %+v", gotUser)
	}
}
