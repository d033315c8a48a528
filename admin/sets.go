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

import "net/http"

// The four ancillary sets below are fire-and-forget presence flags:
// unlike torrents/users/groups there is no record to merge into, so
// upsert/destroy always succeed once the body decodes.

func (h *handler) upsertBlacklistedAgent(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		PeerIDPrefix string `json:"peer_id_prefix"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	h.deps.AgentBlacklist.Add(dto.PeerIDPrefix)
	h.deps.Recorder.Log("upsert_blacklisted_agent", map[string]interface{}{"peer_id_prefix": dto.PeerIDPrefix})

	writeStatus(w, http.StatusOK)
}

func (h *handler) destroyBlacklistedAgent(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		PeerIDPrefix string `json:"peer_id_prefix"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	h.deps.AgentBlacklist.Remove(dto.PeerIDPrefix)
	h.deps.Recorder.Log("destroy_blacklisted_agent", map[string]interface{}{"peer_id_prefix": dto.PeerIDPrefix})

	writeStatus(w, http.StatusOK)
}

func (h *handler) upsertFreeleechToken(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		UserID    uint32 `json:"user_id"`
		TorrentID uint32 `json:"torrent_id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	h.deps.FreeleechTokens.Add(dto.UserID, dto.TorrentID)
	h.deps.Recorder.Log("upsert_freeleech_token", map[string]interface{}{"user_id": dto.UserID, "torrent_id": dto.TorrentID})

	writeStatus(w, http.StatusOK)
}

func (h *handler) destroyFreeleechToken(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		UserID    uint32 `json:"user_id"`
		TorrentID uint32 `json:"torrent_id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	h.deps.FreeleechTokens.Remove(dto.UserID, dto.TorrentID)
	h.deps.Recorder.Log("destroy_freeleech_token", map[string]interface{}{"user_id": dto.UserID, "torrent_id": dto.TorrentID})

	writeStatus(w, http.StatusOK)
}

func (h *handler) upsertPersonalFreeleech(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		UserID uint32 `json:"user_id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	h.deps.PersonalFreeleech.Add(dto.UserID)
	h.deps.Recorder.Log("upsert_personal_freeleech", map[string]interface{}{"user_id": dto.UserID})

	writeStatus(w, http.StatusOK)
}

func (h *handler) destroyPersonalFreeleech(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		UserID uint32 `json:"user_id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	h.deps.PersonalFreeleech.Remove(dto.UserID)
	h.deps.Recorder.Log("destroy_personal_freeleech", map[string]interface{}{"user_id": dto.UserID})

	writeStatus(w, http.StatusOK)
}

func (h *handler) upsertFeaturedTorrent(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		TorrentID uint32 `json:"torrent_id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	h.deps.FeaturedTorrents.Add(dto.TorrentID)
	h.deps.Recorder.Log("upsert_featured_torrent", map[string]interface{}{"torrent_id": dto.TorrentID})

	writeStatus(w, http.StatusOK)
}

func (h *handler) destroyFeaturedTorrent(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		TorrentID uint32 `json:"torrent_id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	h.deps.FeaturedTorrents.Remove(dto.TorrentID)
	h.deps.Recorder.Log("destroy_featured_torrent", map[string]interface{}{"torrent_id": dto.TorrentID})

	writeStatus(w, http.StatusOK)
}
