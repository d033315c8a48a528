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
	"math"
	"net/http"
	"sync/atomic"
	"time"
)

// decayWindows are the request/response rate buckets GET /stats
// reports, each an exponentially-weighted moving rate over that many
// seconds.
var decayWindows = [...]float64{1, 10, 60, 900, 7200}

// decayRate is a single exponentially-decaying event counter, safe for
// concurrent use from arbitrary request goroutines via a CAS loop on
// its bit-cast float64 — there is no natural lock to share the way
// rate.Rate assumes one, since every HTTP handler goroutine ticks it
// independently.
type decayRate struct {
	bits    atomic.Uint64
	updated atomic.Uint64
	window  float64
}

func newDecayRate(window float64, now float64) *decayRate {
	d := &decayRate{window: window}
	d.updated.Store(math.Float64bits(now))

	return d
}

func (d *decayRate) tick(now float64) {
	for {
		prevUpdated := math.Float64frombits(d.updated.Load())
		prevCount := math.Float64frombits(d.bits.Load())
		elapsed := now - prevUpdated
		next := prevCount*math.Exp(-elapsed/d.window) + 1

		if d.bits.CompareAndSwap(math.Float64bits(prevCount), math.Float64bits(next)) {
			d.updated.Store(math.Float64bits(now))
			return
		}
	}
}

func (d *decayRate) perSecond() float64 {
	return math.Float64frombits(d.bits.Load()) / d.window
}

// Stats tracks request and announce-response throughput as decaying
// rates over several windows, grounded on the original tracker's
// AtomicF64-based Stats struct.
type Stats struct {
	createdAt time.Time

	requests  [len(decayWindows)]*decayRate
	announces [len(decayWindows)]*decayRate
}

func NewStats() *Stats {
	now := nowSeconds()
	s := &Stats{createdAt: time.Now()}

	for i, w := range decayWindows {
		s.requests[i] = newDecayRate(w, now)
		s.announces[i] = newDecayRate(w, now)
	}

	return s
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func (s *Stats) IncrementRequest() {
	now := nowSeconds()
	for _, r := range s.requests {
		r.tick(now)
	}
}

func (s *Stats) IncrementAnnounceResponse() {
	now := nowSeconds()
	for _, r := range s.announces {
		r.tick(now)
	}
}

type statsDTO struct {
	CreatedAtSeconds float64 `json:"created_at"`

	RequestsPer1s    float64 `json:"requests_per_1s"`
	RequestsPer10s   float64 `json:"requests_per_10s"`
	RequestsPer60s   float64 `json:"requests_per_60s"`
	RequestsPer900s  float64 `json:"requests_per_900s"`
	RequestsPer7200s float64 `json:"requests_per_7200s"`

	AnnounceResponsesPer1s    float64 `json:"announce_responses_per_1s"`
	AnnounceResponsesPer10s   float64 `json:"announce_responses_per_10s"`
	AnnounceResponsesPer60s   float64 `json:"announce_responses_per_60s"`
	AnnounceResponsesPer900s  float64 `json:"announce_responses_per_900s"`
	AnnounceResponsesPer7200s float64 `json:"announce_responses_per_7200s"`
}

func (h *handler) showStats(w http.ResponseWriter, r *http.Request) {
	s := h.deps.Stats

	writeJSON(w, statsDTO{
		CreatedAtSeconds: float64(s.createdAt.Unix()),

		RequestsPer1s:    s.requests[0].perSecond(),
		RequestsPer10s:   s.requests[1].perSecond(),
		RequestsPer60s:   s.requests[2].perSecond(),
		RequestsPer900s:  s.requests[3].perSecond(),
		RequestsPer7200s: s.requests[4].perSecond(),

		AnnounceResponsesPer1s:    s.announces[0].perSecond(),
		AnnounceResponsesPer10s:   s.announces[1].perSecond(),
		AnnounceResponsesPer60s:   s.announces[2].perSecond(),
		AnnounceResponsesPer900s:  s.announces[3].perSecond(),
		AnnounceResponsesPer7200s: s.announces[4].perSecond(),
	})
}
