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

type userDTO struct {
	ID          uint32  `json:"id"`
	GroupID     uint32  `json:"group_id"`
	Passkey     string  `json:"passkey"`
	NewPasskey  *string `json:"new_passkey,omitempty"`
	CanDownload bool    `json:"can_download"`
	NumSeeding  uint32  `json:"num_seeding"`
	NumLeeching uint32  `json:"num_leeching"`
	IsDonor     bool    `json:"is_donor"`
	IsLifetime  bool    `json:"is_lifetime"`
}

// upsertUser copies the matching fields of the DTO onto a fresh User
// with copier, then resolves the passkey (rotating it if new_passkey
// was supplied) before handing it to UserStore.Upsert, which itself
// preserves the existing rate collections and swarm counters (§4.5).
func (h *handler) upsertUser(w http.ResponseWriter, r *http.Request) {
	var dto userDTO
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	passkey, err := store.PasskeyFromString(dto.Passkey)
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	targetPasskey := passkey

	if dto.NewPasskey != nil {
		targetPasskey, err = store.PasskeyFromString(*dto.NewPasskey)
		if err != nil {
			writeStatus(w, http.StatusBadRequest)
			return
		}
	}

	u := &store.User{}
	if err := copier.Copy(u, &dto); err != nil {
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	u.Passkey = targetPasskey

	h.deps.Users.Upsert(u, h.deps.DefaultSeedRates, h.deps.DefaultLeechRates)

	h.deps.Recorder.Log("upsert_user", map[string]interface{}{"id": dto.ID})

	writeStatus(w, http.StatusOK)
}

// destroyUser soft-deletes by flipping User.Deleted, which the
// announce pipeline rejects with errUserNotFound (a passkey that was
// never registered gets errPasskeyNotFound instead).
func (h *handler) destroyUser(w http.ResponseWriter, r *http.Request) {
	var dto struct {
		ID uint32 `json:"id"`
	}
	if !decodeJSON(r, &dto) {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	if !h.deps.Users.WithUser(dto.ID, func(u *store.User) { u.Deleted = true }) {
		writeStatus(w, http.StatusNotFound)
		return
	}

	h.deps.Recorder.Log("destroy_user", map[string]interface{}{"id": dto.ID})

	writeStatus(w, http.StatusOK)
}

func (h *handler) showUser(w http.ResponseWriter, r *http.Request, id uint32) {
	u, ok := h.deps.Users.Get(id)
	if !ok {
		writeStatus(w, http.StatusNotFound)
		return
	}

	writeJSON(w, userDTO{
		ID:          u.ID,
		GroupID:     u.GroupID,
		Passkey:     string(u.Passkey),
		CanDownload: u.CanDownload,
		NumSeeding:  u.NumSeeding,
		NumLeeching: u.NumLeeching,
		IsDonor:     u.IsDonor,
		IsLifetime:  u.IsLifetime,
	})
}
