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

package announce

import (
	"net"
	"net/http"

	"privateannounce/config"
	"privateannounce/probe"
	"privateannounce/queue"
	"privateannounce/store"
	"privateannounce/util"
	"privateannounce/warning"

	"time"
)

// Deps bundles every process-wide collaborator the pipeline needs. One
// Deps is shared by every request; all fields are themselves
// concurrency-safe.
type Deps struct {
	Torrents *store.TorrentStore
	Users    *store.UserStore
	Groups   *store.GroupStore

	AgentBlacklist *store.AgentBlacklist
	PortBlacklist  *store.PortBlacklist

	FreeleechTokens   *store.PairSet
	PersonalFreeleech *store.IDSet
	FeaturedTorrents  *store.IDSet

	Prober *probe.Prober
	Queues *queue.Queues
	Config *config.Tracker
}

// Handle runs the complete announce pipeline and returns the already
// bencoded response body. It never returns an error: every rejection
// is itself a well-formed bencoded failure dictionary (§4.1.3).
func Handle(deps *Deps, passkeyStr, rawQuery string, header http.Header, remoteAddr string, now time.Time) []byte {
	resp, err := process(deps, passkeyStr, rawQuery, header, remoteAddr, now)
	if err != nil {
		return encodeFailure(err)
	}

	return resp
}

func process(deps *Deps, passkeyStr, rawQuery string, header http.Header, remoteAddr string, now time.Time) ([]byte, *Error) {
	if err := validateHeaders(header); err != nil {
		return nil, err
	}

	q, perr := parseQuery(rawQuery)
	if perr != nil {
		if e, ok := perr.(*Error); ok {
			return nil, e
		}

		return nil, errInternalTrackerError
	}

	userAgent := header.Get("User-Agent")
	if err := validateUserAgent(userAgent); err != nil {
		return nil, err
	}

	if !q.HasNumWant {
		q.NumWant = uint16(deps.Config.NumwantDefault)
	} else if int(q.NumWant) > deps.Config.NumwantMax {
		q.NumWant = uint16(deps.Config.NumwantMax)
	}

	if deps.AgentBlacklist.IsBlacklisted(q.PeerID) {
		return nil, errBlacklistedClient
	}

	if deps.PortBlacklist.IsBlacklisted(q.Port) && q.Event != queue.EventStopped {
		return nil, errBlacklistedPort(q.Port)
	}

	passkey, err := store.PasskeyFromString(passkeyStr)
	if err != nil {
		return nil, errInvalidPasskey
	}

	user, ok := deps.Users.GetByPasskey(passkey)
	if !ok {
		return nil, errPasskeyNotFound
	}

	if user.Deleted {
		return nil, errUserNotFound
	}

	ipStr := resolveAnnouncedIP(q, header, remoteAddr, deps.Config.ClientIPHeader)
	ip := net.ParseIP(ipStr)

	if ip == nil {
		return nil, errInternalTrackerError
	}

	torrent, ok := deps.Torrents.GetByInfoHash(q.InfoHash)
	if !ok {
		deps.Queues.UnregisteredInfoHashes.Upsert(queue.UnregisteredInfoHashIndex{
			UserID:   user.ID,
			InfoHash: q.InfoHash,
		}, queue.UnregisteredInfoHashUpdate{CreatedAt: now, UpdatedAt: now})

		return nil, errInfoHashNotFound
	}

	var isConnectable bool
	if deps.Prober != nil {
		isConnectable = deps.Prober.IsConnectable(ip, q.Port)
	}

	warnings := &warning.Collection{}

	if !isConnectable && deps.Config.RequirePeerConnectivity {
		warnings.Add(warning.ConnectivityIssueDetected)
	}

	outcome, terr := applyTransition(deps, torrent, user, q, ipStr, ip, isConnectable, now, warnings)
	if terr != nil {
		return nil, terr
	}

	if outcome.ShouldEarlyReturn {
		return encodeSuccess(outcome.Response), nil
	}

	applyAccounting(deps, torrent, user, q, userAgent, ipStr, now, outcome)

	return encodeSuccess(outcome.Response), nil
}

// resolveAnnouncedIP implements §6's client-ip resolution plus the
// ipv4/ip query-parameter precedence the original source honours
// ahead of any proxy header.
func resolveAnnouncedIP(q *Query, header http.Header, remoteAddr, proxyHeader string) string {
	if q.HasIPv4 {
		if ip := net.ParseIP(q.IPv4); ip != nil && ip.To4() != nil {
			return q.IPv4
		}
	}

	if q.HasIP {
		if ip := net.ParseIP(q.IP); ip != nil {
			return q.IP
		}
	}

	return clientIP(header, remoteAddr, proxyHeader)
}

// transitionOutcome is everything computed while the torrent's peer
// lock was held, needed both to decide whether to early-return and to
// drive the post-unlock accounting pass.
type transitionOutcome struct {
	SeederDelta         int32
	LeecherDelta        int32
	TimesCompletedDelta uint32
	UploadedDelta       uint64
	DownloadedDelta     uint64
	IsVisible           bool

	HasRequestedSeedList  bool
	HasRequestedLeechList bool

	// IsConnectable is the probe result folded into the enqueued peer
	// row; Removed marks the peer-deletion path taken on a 'stopped'
	// event against a peer that actually existed.
	IsConnectable bool
	Removed       bool

	ShouldEarlyReturn bool
	Response          responseFields
}

func applyTransition(deps *Deps, t *store.Torrent, user *store.User, q *Query, ipStr string, ip net.IP, isConnectable bool, now time.Time, warnings *warning.Collection) (transitionOutcome, *Error) {
	var out transitionOutcome

	t.PeerLock()
	defer t.PeerUnlock()

	if t.IsDeleted.Load() {
		return out, errTorrentDeleted
	}

	switch store.Status(t.Status.Load()) {
	case store.StatusApproved:
		// fallthrough to the rest of the pipeline
	case store.StatusPending:
		return out, errModeration("Torrent is pending moderation.")
	case store.StatusRejected:
		return out, errModeration("Torrent has been rejected.")
	case store.StatusPostponed:
		return out, errModeration("Torrent has been postponed.")
	default:
		return out, fail("Torrent not approved.")
	}

	if !user.CanDownload && q.Left != 0 {
		return out, errDownloadRevoked
	}

	group, ok := deps.Groups.Get(user.GroupID)
	if !ok {
		return out, errGroupNotFound
	}

	if group.IsDisabled() {
		return out, errGroupNotEnabled(group.Slug)
	}

	hasHitDownloadSlotLimit := false
	if q.Left > 0 && group.DownloadSlots != nil {
		hasHitDownloadSlotLimit = user.NumLeeching >= *group.DownloadSlots
	}

	seederDelta, leecherDelta, timesCompletedDelta, uploadedDelta, downloadedDelta, isVisible, shouldEarlyReturn, terr :=
		transitionPeer(t, user.ID, q, ip, isConnectable, hasHitDownloadSlotLimit, deps.Config.AnnounceMinEnforced, deps.Config.MaxPeersPerTorrentPerUser, now, warnings)
	if terr != nil {
		return out, terr
	}

	out.SeederDelta = seederDelta
	out.LeecherDelta = leecherDelta
	out.TimesCompletedDelta = timesCompletedDelta
	out.UploadedDelta = uploadedDelta
	out.DownloadedDelta = downloadedDelta
	out.IsVisible = isVisible
	out.ShouldEarlyReturn = shouldEarlyReturn
	out.IsConnectable = isConnectable
	out.Removed = q.Event == queue.EventStopped && !shouldEarlyReturn

	t.Seeders.Store(addSaturatingSigned(t.Seeders.Load(), seederDelta))
	t.Leechers.Store(addSaturatingSigned(t.Leechers.Load(), leecherDelta))
	t.TimesCompleted.Store(t.TimesCompleted.Load() + timesCompletedDelta)

	var peersIPv4, peersIPv6 []byte

	isOverSeedListRateLimit := false
	isOverLeechListRateLimit := false

	if q.Event != queue.EventStopped && warnings.IsEmpty() && t.Leechers.Load() > 0 {
		target := int(q.NumWant)

		candidateSeeders := make([]*store.Peer, 0)
		candidateLeechers := make([]*store.Peer, 0)

		requireConnectivity := deps.Config.RequirePeerConnectivity

		for k, p := range t.Peers {
			if k.UserID() == user.ID {
				continue
			}

			if !p.IsIncludedInPeerList(requireConnectivity) {
				continue
			}

			if p.IsSeeder {
				candidateSeeders = append(candidateSeeders, p)
			} else {
				candidateLeechers = append(candidateLeechers, p)
			}
		}

		picked := make([]*store.Peer, 0, target)

		if q.Left > 0 && t.Seeders.Load() > 0 && target > len(picked) {
			out.HasRequestedSeedList = true

			if user.ReceiveSeedListRates == nil || user.ReceiveSeedListRates.IsUnderLimit() {
				picked = append(picked, reservoirSample(candidateSeeders, target-len(picked))...)
			} else {
				isOverSeedListRateLimit = true
			}
		}

		if t.Leechers.Load() > 0 && target > len(picked) {
			out.HasRequestedLeechList = true

			if user.ReceiveLeechListRates == nil || user.ReceiveLeechListRates.IsUnderLimit() {
				picked = append(picked, reservoirSample(candidateLeechers, target-len(picked))...)
			} else {
				isOverLeechListRateLimit = true
			}
		}

		for _, p := range picked {
			if v4, ok := p.CompactIPv4(); ok {
				peersIPv4 = append(peersIPv4, v4[:]...)
			} else if v6, ok := p.CompactIPv6(); ok {
				peersIPv6 = append(peersIPv6, v6[:]...)
			}
		}
	}

	interval := int64(deps.Config.AnnounceMin.Seconds())
	if deps.Config.AnnounceMax > deps.Config.AnnounceMin {
		span := int64((deps.Config.AnnounceMax - deps.Config.AnnounceMin).Seconds())
		interval += int64(util.UnsafeIntn(int(span) + 1))
	}

	warningMessage, hasWarning := warnings.IntoMessage()

	zero := isOverSeedListRateLimit || isOverLeechListRateLimit || !warnings.IsEmpty()

	out.Response = responseFields{
		Complete:       zeroIf(zero || isOverSeedListRateLimit, t.Seeders.Load()),
		Downloaded:     t.TimesCompleted.Load(),
		Incomplete:     zeroIf(zero || isOverLeechListRateLimit, t.Leechers.Load()),
		Interval:       interval,
		MinInterval:    int64(deps.Config.AnnounceMin.Seconds()),
		PeersIPv4:      peersIPv4,
		PeersIPv6:      peersIPv6,
		WarningMessage: warningMessage,
		HasWarning:     hasWarning,
	}

	return out, nil
}

func zeroIf(cond bool, v uint32) uint32 {
	if cond {
		return 0
	}

	return v
}

func addSaturatingSigned(current uint32, delta int32) uint32 {
	sum := int64(current) + int64(delta)
	if sum < 0 {
		return 0
	}

	if sum > int64(^uint32(0)) {
		return ^uint32(0)
	}

	return uint32(sum)
}
