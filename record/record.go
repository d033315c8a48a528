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

// Package record is the admin surface's audit trail: every moderator
// upsert/delete against the torrent, user, group and ancillary-set
// stores is appended as one JSON line to an hourly-rotating file,
// independent of the scheduler's own DB-bound announces log.
package record

import (
	"encoding/json"
	"os"
	"time"
)

var eventsDir = "events"

// Recorder appends admin-mutation events through a buffered channel so
// a slow disk never blocks the HTTP handler that triggered the write.
// A disabled Recorder drops Log calls on the floor and never opens a
// file; the zero value is safe to call Log/Close on.
type Recorder struct {
	enabled bool
	eventsC chan []byte
	done    chan struct{}
}

// New starts the writer goroutine when enabled is true. Close must be
// called to flush buffered events and stop the goroutine.
func New(enabled bool) *Recorder {
	r := &Recorder{enabled: enabled}
	if !enabled {
		return r
	}

	if err := os.MkdirAll(eventsDir, 0o755); err != nil {
		panic(err)
	}

	r.eventsC = make(chan []byte, 64)
	r.done = make(chan struct{})

	go r.run()

	return r
}

func openEventFile(t time.Time) (*os.File, error) {
	return os.OpenFile(eventsDir+"/admin_"+t.Format("2006-01-02T15")+".json", os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
}

func (r *Recorder) run() {
	defer close(r.done)

	start := time.Now()

	f, err := openEventFile(start)
	if err != nil {
		panic(err)
	}

	for line := range r.eventsC {
		now := time.Now()
		if now.Hour() != start.Hour() {
			start = now

			if err := f.Close(); err != nil {
				panic(err)
			}

			f, err = openEventFile(start)
			if err != nil {
				panic(err)
			}
		}

		if _, err := f.Write(line); err != nil {
			panic(err)
		}
	}

	_ = f.Close()
}

// Log appends one JSON object recording action (e.g. "upsert_torrent",
// "destroy_user") and whatever fields identify the affected record.
func (r *Recorder) Log(action string, fields map[string]interface{}) {
	if r == nil || !r.enabled {
		return
	}

	entry := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}

	entry["time"] = time.Now().UTC().Format(time.RFC3339)
	entry["action"] = action

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}

	r.eventsC <- append(line, '\n')
}

// Close stops the writer goroutine once it has drained any buffered
// events, then closes the underlying file.
func (r *Recorder) Close() {
	if r == nil || !r.enabled {
		return
	}

	close(r.eventsC)
	<-r.done
}
