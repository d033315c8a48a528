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

// Package probe implements the outbound TCP connectivity check an
// announce can trigger against the peer's advertised address, so the
// response can warn a client that sits behind a NAT or firewall
// without a forwarded port.
package probe

import (
	"net"
	"strconv"
	"time"

	"privateannounce/store"
)

// DialTimeout bounds how long a single connectivity probe may block
// the announce that triggered it.
const DialTimeout = 500 * time.Millisecond

// Prober checks whether a peer's advertised (ip, port) accepts inbound
// TCP connections, caching the result for TTL so that a swarm of
// frequent re-announcers doesn't each pay the dial cost.
type Prober struct {
	cache   *store.ConnectablePortCache
	enabled bool
	ttl     time.Duration
}

func New(enabled bool, ttl time.Duration) *Prober {
	return &Prober{
		cache:   store.NewConnectablePortCache(),
		enabled: enabled,
		ttl:     ttl,
	}
}

// IsConnectable reports whether ip:port currently accepts inbound TCP
// connections. It always returns false when the probe is disabled,
// matching the source's behaviour of requiring an explicit opt-in
// before dialing out to a client's advertised address.
func (p *Prober) IsConnectable(ip net.IP, port uint16) bool {
	if !p.enabled {
		return false
	}

	now := time.Now()
	key := net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))

	if connectable, fresh := p.cache.Get(key, p.ttl, now); fresh {
		return connectable
	}

	connectable := p.dial(key)
	p.cache.Set(key, connectable, now)

	return connectable
}

// Seed primes the cache entry for ip:port without dialing, used at
// startup to prepopulate the cache from the peers table's own
// connectable column instead of waiting for the first live probe.
func (p *Prober) Seed(ip net.IP, port uint16, connectable bool, now time.Time) {
	key := net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
	p.cache.Set(key, connectable, now)
}

func (p *Prober) dial(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return false
	}

	_ = conn.Close()

	return true
}
