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

package admin

import (
	"net/http"

	"privateannounce/store"
)

type torrentDTO struct {
	ID             uint32 `json:"id"`
	Status         uint8  `json:"status"`
	InfoHash       string `json:"info_hash"`
	IsDeleted      bool   `json:"is_deleted"`
	Seeders        uint32 `json:"seeders"`
	Leechers       uint32 `json:"leechers"`
	TimesCompleted uint32 `json:"times_completed"`
	DownloadFactor uint8  `json:"download_factor"`
	UploadFactor   uint8  `json:"upload_factor"`
}

// upsertTorrent mirrors TorrentStore.Upsert's own contract: the peer
// map of an existing torrent_id is preserved, only moderation metadata
// and counters are replaced.
func (h *handler) upsertTorrent(w http.ResponseWriter, r *http.Request) {
	var dto torrentDTO
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	infoHash, err := store.InfoHashFromHex(dto.InfoHash)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	t := h.deps.Torrents.Upsert(dto.ID, infoHash, store.Status(dto.Status), dto.IsDeleted, dto.UploadFactor, dto.DownloadFactor)
	t.Seeders.Store(dto.Seeders)
	t.Leechers.Store(dto.Leechers)
	t.TimesCompleted.Store(dto.TimesCompleted)

	h.deps.Recorder.Log("upsert_torrent", map[string]interface{}{"id": dto.ID, "status": dto.Status})

	writeStatus(w, http.StatusOK)
}

// destroyTorrent soft-deletes: peers stay in place and reap does not
// prune the entry (§9 of the design notes).
func (h *handler) destroyTorrent(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		ID uint32 `json:"id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	if !h.deps.Torrents.Delete(dto.ID) {
		writeStatus(w, http.StatusNotFound)
		return
	}

	h.deps.Recorder.Log("destroy_torrent", map[string]interface{}{"id": dto.ID})

	writeStatus(w, http.StatusOK)
}

func (h *handler) showTorrent(w http.ResponseWriter, r *http.Request, id uint32) {
	t, ok := h.deps.Torrents.Get(id)
	if !ok {
		writeStatus(w, http.StatusNotFound)
		return
	}

	writeJSON(w, torrentDTO{
		ID:             t.ID,
		Status:         uint8(t.Status.Load()),
		InfoHash:       t.InfoHash.String(),
		IsDeleted:      t.IsDeleted.Load(),
		Seeders:        t.Seeders.Load(),
		Leechers:       t.Leechers.Load(),
		TimesCompleted: t.TimesCompleted.Load(),
		DownloadFactor: uint8(t.DownloadFactor.Load()),
		UploadFactor:   uint8(t.UploadFactor.Load()),
	})
}
