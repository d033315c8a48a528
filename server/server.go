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

// Package server wires the in-memory stores, the announce pipeline,
// the admin surface and the scheduler into one running process: a
// single net/http.Server whose routing is a plain path switch (no
// router dependency, matching the teacher's own hand-rolled dispatch),
// backed by a graceful Start/Stop pair.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"privateannounce/admin"
	"privateannounce/announce"
	"privateannounce/collectors"
	"privateannounce/config"
	"privateannounce/database"
	"privateannounce/log"
	"privateannounce/probe"
	"privateannounce/queue"
	"privateannounce/rate"
	"privateannounce/record"
	"privateannounce/scheduler"
	"privateannounce/store"
)

// Server owns every long-lived collaborator the tracker needs: the
// in-memory stores, the periodic reload/flush scheduler, the database
// connection backing both, and the HTTP listener multiplexing
// announce, admin and metrics traffic across them.
type Server struct {
	cfg *config.Tracker

	torrents *store.TorrentStore
	users    *store.UserStore
	groups   *store.GroupStore

	db        *database.DB
	scheduler *scheduler.Scheduler

	announceDeps *announce.Deps
	adminDeps    *admin.Deps
	adminHandler http.Handler
	recorder     *record.Recorder

	normalCollector *collectors.NormalCollector
	stats           *admin.Stats

	httpServer *http.Server
	listener   net.Listener
	cancel     context.CancelFunc

	waitGroup sync.WaitGroup
	terminate atomic.Bool
	requests  atomic.Uint64

	startTime time.Time
}

// New constructs every store, queue and dependency bundle the server
// needs but does not yet bind a listener or start the scheduler — that
// happens in Start, so tests can build a Server and exercise its
// ServeHTTP without opening a socket.
func New(cfg *config.Tracker) (*Server, error) {
	seedRates, err := rate.NewCollectionFromString(cfg.UserReceiveSeedListRateLimits)
	if err != nil {
		return nil, fmt.Errorf("server: parsing user_receive_seed_list_rate_limits: %w", err)
	}

	leechRates, err := rate.NewCollectionFromString(cfg.UserReceiveLeechListRateLimits)
	if err != nil {
		return nil, fmt.Errorf("server: parsing user_receive_leech_list_rate_limits: %w", err)
	}

	torrents := store.NewTorrentStore()
	users := store.NewUserStore()
	groups := store.NewGroupStore()

	agentBlacklist := store.NewAgentBlacklist()
	portBlacklist := store.NewPortBlacklist()
	freeleechTokens := store.NewPairSet()
	personalFreeleech := store.NewIDSet()
	featuredTorrents := store.NewIDSet()

	prober := probe.New(cfg.IsConnectivityCheckEnabled, cfg.ConnectivityCheckInterval)
	queues := queue.NewQueues(cfg.MaxRecordsPerBatch)

	recorder := record.New(cfg.IsAdminAuditLoggingEnabled)

	s := &Server{
		cfg:      cfg,
		torrents: torrents,
		users:    users,
		groups:   groups,
		db:       database.Open(),
		recorder: recorder,

		announceDeps: &announce.Deps{
			Torrents: torrents,
			Users:    users,
			Groups:   groups,

			AgentBlacklist: agentBlacklist,
			PortBlacklist:  portBlacklist,

			FreeleechTokens:   freeleechTokens,
			PersonalFreeleech: personalFreeleech,
			FeaturedTorrents:  featuredTorrents,

			Prober: prober,
			Queues: queues,
			Config: cfg,
		},

		stats: admin.NewStats(),

		normalCollector: collectors.NewNormalCollector(),

		startTime: time.Now(),
	}

	s.adminDeps = &admin.Deps{
		Torrents: torrents,
		Users:    users,
		Groups:   groups,

		AgentBlacklist: agentBlacklist,

		FreeleechTokens:   freeleechTokens,
		PersonalFreeleech: personalFreeleech,
		FeaturedTorrents:  featuredTorrents,

		Stats: s.stats,

		DefaultSeedRates:  seedRates,
		DefaultLeechRates: leechRates,

		Recorder: recorder,
	}

	s.adminHandler = admin.NewHandler(s.adminDeps)

	s.scheduler = scheduler.New(queues, torrents, users, s.db, cfg)

	prometheus.MustRegister(s.normalCollector)
	prometheus.MustRegister(collectors.NewAdminCollector())

	return s, nil
}

func (s *Server) reloadTargets() database.ReloadTargets {
	return database.ReloadTargets{
		Torrents: s.torrents,
		Users:    s.users,
		Groups:   s.groups,

		AgentBlacklist:    s.announceDeps.AgentBlacklist,
		FreeleechTokens:   s.announceDeps.FreeleechTokens,
		PersonalFreeleech: s.announceDeps.PersonalFreeleech,
		FeaturedTorrents:  s.announceDeps.FeaturedTorrents,

		Prober: s.announceDeps.Prober,

		DefaultSeedRates:  s.adminDeps.DefaultSeedRates,
		DefaultLeechRates: s.adminDeps.DefaultLeechRates,
	}
}

// Start performs the warm-restart load, a blocking initial reload from
// the database, then binds the listener and runs until the listener
// is closed by Stop. It does not return until the server has finished
// draining in-flight requests.
func (s *Server) Start() error {
	database.Deserialize(s.torrents, s.users)

	if err := s.db.Reload(s.reloadTargets()); err != nil {
		return fmt.Errorf("server: initial reload: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.scheduler.Run(ctx)
	go s.runPeriodicReload(ctx)

	addr := net.JoinHostPort(s.cfg.ListeningIPAddress, strconv.Itoa(s.cfg.ListeningPort))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{Handler: s, ReadTimeout: 20 * time.Second}

	log.Info.Printf("Ready and accepting new connections on %s", addr)

	_ = s.httpServer.Serve(listener)

	s.waitGroup.Wait()

	log.Info.Println("Now closed and not accepting any new connections")

	s.shutdown()

	log.Info.Println("Shutdown complete")

	return nil
}

// Stop closes the listener, which causes Serve (and therefore Start)
// to return once in-flight requests finish.
func (s *Server) Stop() {
	s.terminate.Store(true)

	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *Server) shutdown() {
	if s.cancel != nil {
		s.cancel()
	}

	s.scheduler.Flush()

	if err := database.Serialize(s.torrents, s.users); err != nil {
		log.Error.Printf("Failed to serialize warm-restart cache on shutdown: %s", err)
	}

	s.recorder.Close()

	if err := s.db.Close(); err != nil {
		log.Error.Printf("Failed to close database connection: %s", err)
	}
}

// runPeriodicReload re-syncs the in-memory stores from the database
// and dumps the warm-restart cache on independent tickers, mirroring
// the teacher's own separate DatabaseReloadInterval/
// DatabaseSerializationInterval cadence rather than coupling either to
// the scheduler's flush/reap ticks.
func (s *Server) runPeriodicReload(ctx context.Context) {
	reloadTicker := time.NewTicker(s.cfg.ReloadInterval)
	defer reloadTicker.Stop()

	serializeTicker := time.NewTicker(s.cfg.SerializationInterval)
	defer serializeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reloadTicker.C:
			if err := s.db.Reload(s.reloadTargets()); err != nil {
				log.Error.Printf("Periodic reload failed: %s", err)
			}
		case <-serializeTicker.C:
			if err := database.Serialize(s.torrents, s.users); err != nil {
				log.Error.Printf("Periodic serialize failed: %s", err)
			}
		}
	}
}

// ServeHTTP dispatches to the announce pipeline, the apikey-gated
// admin surface, or the prometheus exposition handler, by path shape —
// matching the original tracker's single-switch routing rather than
// pulling in a router dependency for three routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.terminate.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	s.waitGroup.Add(1)
	defer s.waitGroup.Done()

	defer func() {
		if err := recover(); err != nil {
			log.Error.Printf("ServeHTTP panic - %v", err)
			log.WriteStack()
			collectors.IncrementErroredRequests()
			w.WriteHeader(http.StatusInternalServerError)
		}
	}()

	s.requests.Add(1)
	s.stats.IncrementRequest()

	urlPath := r.URL.Path

	apikeyPrefix := "/announce/" + s.cfg.APIKey
	if urlPath == apikeyPrefix || strings.HasPrefix(urlPath, apikeyPrefix+"/") {
		sub := strings.TrimPrefix(urlPath, apikeyPrefix)
		if sub == "" {
			sub = "/"
		}

		r2 := r.Clone(r.Context())
		r2.URL.Path = sub
		s.adminHandler.ServeHTTP(w, r2)

		return
	}

	if urlPath == "/metrics" {
		promhttp.Handler().ServeHTTP(w, r)
		return
	}

	s.serveAnnounce(w, r)
}

// serveAnnounce expects a path of the form /{passkey}/announce, the
// same shape the original tracker's own path.Split-based dispatch
// used.
func (s *Server) serveAnnounce(w http.ResponseWriter, r *http.Request) {
	dir, action := path.Split(r.URL.Path)
	if len(dir) != 34 || action != "announce" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	passkey := dir[1:33]

	resp := announce.Handle(s.announceDeps, passkey, r.URL.RawQuery, r.Header, r.RemoteAddr, time.Now())

	s.stats.IncrementAnnounceResponse()

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.Itoa(len(resp)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}
