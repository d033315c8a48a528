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

	"github.com/jinzhu/copier"

	"privateannounce/store"
)

// groupDTO takes the boolean is_freeleech/is_double_upload pair the
// moderation panel actually edits and derives the stored percentage
// factors from them, matching the source this table is moderated from.
type groupDTO struct {
	ID              uint32  `json:"id"`
	Slug            string  `json:"slug"`
	DownloadSlots   *uint32 `json:"download_slots"`
	IsImmune        bool    `json:"is_immune"`
	IsFreeleech     bool    `json:"is_freeleech"`
	IsDoubleUpload  bool    `json:"is_double_upload"`
}

func (h *handler) upsertGroup(w http.ResponseWriter, r *http.Request) {
	var dto groupDTO
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	g := &store.Group{}
	if err := copier.Copy(g, &dto); err != nil {
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	g.DownloadFactor = 100
	if dto.IsFreeleech {
		g.DownloadFactor = 0
	}

	g.UploadFactor = 100
	if dto.IsDoubleUpload {
		g.UploadFactor = 200
	}

	h.deps.Groups.Upsert(g)

	h.deps.Recorder.Log("upsert_group", map[string]interface{}{"id": dto.ID, "slug": dto.Slug})

	writeStatus(w, http.StatusOK)
}

func (h *handler) destroyGroup(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		ID uint32 `json:"id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	if _, ok := h.deps.Groups.Get(dto.ID); !ok {
		writeStatus(w, http.StatusNotFound)
		return
	}

	h.deps.Groups.Delete(dto.ID)

	h.deps.Recorder.Log("destroy_group", map[string]interface{}{"id": dto.ID})

	writeStatus(w, http.StatusOK)
}
