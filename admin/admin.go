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

// Package admin implements the JSON management surface mounted under
// /announce/{apikey}/...: moderator-driven upsert/delete of torrents,
// users, groups and the small ancillary sets (blacklisted agents,
// freeleech tokens, personal freeleech, featured torrents), plus a
// read-only stats endpoint. Every handler mutates the same in-memory
// stores the announce pipeline reads; there is no direct database
// write here; persistence is the periodic reload/serialize cycle.
package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"privateannounce/rate"
	"privateannounce/record"
	"privateannounce/store"
)

// Deps bundles the stores and defaults the admin surface mutates.
type Deps struct {
	Torrents *store.TorrentStore
	Users    *store.UserStore
	Groups   *store.GroupStore

	AgentBlacklist *store.AgentBlacklist

	FreeleechTokens   *store.PairSet
	PersonalFreeleech *store.IDSet
	FeaturedTorrents  *store.IDSet

	Stats *Stats

	// DefaultSeedRates/DefaultLeechRates seed a brand-new user's rate
	// collections, parsed once at startup from the tracker config's
	// user_receive_{seed,leech}_list_rate_limits strings.
	DefaultSeedRates  *rate.Collection
	DefaultLeechRates *rate.Collection

	// Recorder audits every successful mutation below; a nil Recorder
	// (or one built with record.New(false)) silently drops every Log
	// call, so callers never need to branch on whether it's enabled.
	Recorder *record.Recorder
}

// Handler serves the admin sub-tree. The caller (the server package)
// is responsible for apikey-gating and for stripping the
// "/announce/{apikey}" prefix before delegating here — this package
// only knows about the routes themselves, matching the original
// source's Router::nest split between the apikey path segment and the
// routes nested beneath it.
func NewHandler(deps *Deps) http.Handler {
	return &handler{deps: deps}
}

type handler struct {
	deps *Deps
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/torrents":
		h.dispatch(w, r, h.upsertTorrent, h.destroyTorrent)
	case strings.HasPrefix(path, "/torrents/"):
		h.withID(w, r, path, "/torrents/", h.showTorrent)
	case path == "/users":
		h.dispatch(w, r, h.upsertUser, h.destroyUser)
	case strings.HasPrefix(path, "/users/"):
		h.withID(w, r, path, "/users/", h.showUser)
	case path == "/groups":
		h.dispatch(w, r, h.upsertGroup, h.destroyGroup)
	case path == "/blacklisted-agents":
		h.dispatch(w, r, h.upsertBlacklistedAgent, h.destroyBlacklistedAgent)
	case path == "/freeleech-tokens":
		h.dispatch(w, r, h.upsertFreeleechToken, h.destroyFreeleechToken)
	case path == "/personal-freeleech":
		h.dispatch(w, r, h.upsertPersonalFreeleech, h.destroyPersonalFreeleech)
	case path == "/featured-torrents":
		h.dispatch(w, r, h.upsertFeaturedTorrent, h.destroyFeaturedTorrent)
	case path == "/stats":
		if r.Method != http.MethodGet {
			writeStatus(w, http.StatusMethodNotAllowed)
			return
		}

		h.showStats(w, r)
	default:
		writeStatus(w, http.StatusNotFound)
	}
}

func (h *handler) dispatch(w http.ResponseWriter, r *http.Request, put, del http.HandlerFunc) {
	switch r.Method {
	case http.MethodPut:
		put(w, r)
	case http.MethodDelete:
		del(w, r)
	default:
		writeStatus(w, http.StatusMethodNotAllowed)
	}
}

func (h *handler) withID(w http.ResponseWriter, r *http.Request, path, prefix string, show func(w http.ResponseWriter, r *http.Request, id uint32)) {
	if r.Method != http.MethodGet {
		writeStatus(w, http.StatusMethodNotAllowed)
		return
	}

	id, err := parseID(strings.TrimPrefix(path, prefix))
	if err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	show(w, r, id)
}

func parseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	return uint32(n), err
}

func decodeJSON(r *http.Request, v interface{}) bool {
	defer r.Body.Close()

	return json.NewDecoder(r.Body).Decode(v) == nil
}

func writeStatus(w http.ResponseWriter, code int) {
	w.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(v)
}
