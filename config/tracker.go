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

package config

import (
	"errors"
	"fmt"
	"time"
)

// Tracker is the set of runtime-tunable values the announce pipeline,
// scheduler and admin surface read on every request. It is loaded once
// at startup from the same JSON file the rest of the package reads,
// under the "tracker" section, and is immutable for the life of the
// process (an operator wanting new values restarts the process, same
// as the teacher's buffer-size and interval vars above).
type Tracker struct {
	FlushInterval time.Duration

	NumwantDefault int
	NumwantMax     int
	AnnounceMin    time.Duration
	AnnounceMax    time.Duration
	// AnnounceMinEnforced is the minimum gap between two announces from
	// the same peer before RateLimitExceeded fires; distinct from
	// AnnounceMin, which only bounds the interval handed back to the
	// client.
	AnnounceMinEnforced time.Duration

	UploadFactor   uint8
	DownloadFactor uint8

	PeerExpiryInterval time.Duration
	ActivePeerTTL      time.Duration
	InactivePeerTTL    time.Duration

	// ReloadInterval/SerializationInterval pace the background passes
	// that re-sync the in-memory stores from the database and dump the
	// warm-restart cache, independent of the scheduler's own
	// FlushInterval/PeerExpiryInterval ticks.
	ReloadInterval        time.Duration
	SerializationInterval time.Duration

	MaxPeersPerTorrentPerUser int

	// DonorUploadFactor, DonorDownloadFactor, DonorIsImmune,
	// LifetimeUploadFactor, LifetimeDownloadFactor, LifetimeIsImmune
	// override a group's credit factors for donor/lifetime users.
	DonorUploadFactor      uint8
	DonorDownloadFactor    uint8
	DonorIsImmune          bool
	LifetimeUploadFactor   uint8
	LifetimeDownloadFactor uint8
	LifetimeIsImmune       bool

	RequirePeerConnectivity     bool
	IsConnectivityCheckEnabled  bool
	ConnectivityCheckInterval   time.Duration
	PrepopulateConnectablePorts bool

	UserReceiveSeedListRateLimits  string
	UserReceiveLeechListRateLimits string

	IsAnnounceLoggingEnabled bool

	// IsAdminAuditLoggingEnabled gates the admin surface's JSON-lines
	// audit trail of moderator mutations (record.Recorder); independent
	// of IsAnnounceLoggingEnabled, which governs the DB-bound announces
	// queue instead.
	IsAdminAuditLoggingEnabled bool

	MaxRecordsPerBatch int
	MaxBatchesPerFlush int

	APIKey string

	ListeningIPAddress string
	ListeningPort      int

	// ClientIPHeader is the header a trusted reverse proxy sets with
	// the real client address (e.g. "X-Forwarded-For"); empty means
	// trust the TCP connection's remote address directly.
	ClientIPHeader string
}

var errAPIKeyTooShort = errors.New("config: apikey must be at least 32 characters")

// LoadTracker reads the "tracker" section of the config file, applying
// defaults for anything absent so a minimal config file still boots a
// usable (if permissive) tracker.
func LoadTracker() (*Tracker, error) {
	return loadTrackerFrom(Section("tracker"))
}

func loadTrackerFrom(section ConfigMap) (*Tracker, error) {
	t := &Tracker{
		FlushInterval:                  durationSeconds(section, "flush_interval", 2),
		NumwantDefault:                 intOr(section, "numwant_default", 50),
		NumwantMax:                     intOr(section, "numwant_max", 50),
		AnnounceMin:                    durationSeconds(section, "announce_min", 30*60),
		AnnounceMax:                    durationSeconds(section, "announce_max", 45*60),
		AnnounceMinEnforced:            durationSeconds(section, "announce_min_enforced", 30),
		UploadFactor:                   uint8(intOr(section, "upload_factor", 100)),
		DownloadFactor:                 uint8(intOr(section, "download_factor", 100)),
		PeerExpiryInterval:             durationSeconds(section, "peer_expiry_interval", 10*60),
		ActivePeerTTL:                  durationSeconds(section, "active_peer_ttl", 5*60),
		InactivePeerTTL:                durationSeconds(section, "inactive_peer_ttl", 15*60),
		ReloadInterval:                 durationSeconds(section, "reload_interval", 45),
		SerializationInterval:          durationSeconds(section, "serialization_interval", 68),
		MaxPeersPerTorrentPerUser:      intOr(section, "max_peers_per_torrent_per_user", 2),
		DonorUploadFactor:              uint8(intOr(section, "donor_upload_factor", 100)),
		DonorDownloadFactor:            uint8(intOr(section, "donor_download_factor", 100)),
		DonorIsImmune:                  boolOr(section, "donor_is_immune", false),
		LifetimeUploadFactor:           uint8(intOr(section, "lifetime_upload_factor", 100)),
		LifetimeDownloadFactor:         uint8(intOr(section, "lifetime_download_factor", 100)),
		LifetimeIsImmune:               boolOr(section, "lifetime_is_immune", false),
		RequirePeerConnectivity:        boolOr(section, "require_peer_connectivity", false),
		IsConnectivityCheckEnabled:     boolOr(section, "is_connectivity_check_enabled", false),
		ConnectivityCheckInterval:      durationSeconds(section, "connectivity_check_interval", 3600),
		PrepopulateConnectablePorts:    boolOr(section, "prepopulate_connectable_ports", false),
		UserReceiveSeedListRateLimits:  stringOr(section, "user_receive_seed_list_rate_limits", "60=180;3600=3000"),
		UserReceiveLeechListRateLimits: stringOr(section, "user_receive_leech_list_rate_limits", "60=180;3600=3000"),
		IsAnnounceLoggingEnabled:       boolOr(section, "is_announce_logging_enabled", false),
		IsAdminAuditLoggingEnabled:     boolOr(section, "is_admin_audit_logging_enabled", false),
		MaxRecordsPerBatch:             intOr(section, "max_records_per_batch", 0),
		MaxBatchesPerFlush:             intOr(section, "max_batches_per_flush", 4),
		APIKey:                         stringOr(section, "apikey", ""),
		ListeningIPAddress:             stringOr(section, "listening_ip_address", "0.0.0.0"),
		ListeningPort:                  intOr(section, "listening_port", 34000),
		ClientIPHeader:                 stringOr(section, "client_ip_header", ""),
	}

	if len(t.APIKey) < 32 {
		return nil, fmt.Errorf("%w (got %d characters)", errAPIKeyTooShort, len(t.APIKey))
	}

	return t, nil
}

func durationSeconds(m ConfigMap, key string, defaultSeconds int) time.Duration {
	seconds, _ := m.GetInt(key, defaultSeconds)
	return time.Duration(seconds) * time.Second
}

func intOr(m ConfigMap, key string, defaultValue int) int {
	v, _ := m.GetInt(key, defaultValue)
	return v
}

func boolOr(m ConfigMap, key string, defaultValue bool) bool {
	v, _ := m.GetBool(key, defaultValue)
	return v
}

func stringOr(m ConfigMap, key string, defaultValue string) string {
	v, _ := m.Get(key, defaultValue)
	return v
}
