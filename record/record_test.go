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

package record

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func withTempEventsDir(t *testing.T) {
	t.Helper()

	prev := eventsDir
	eventsDir = t.TempDir()

	t.Cleanup(func() { eventsDir = prev })
}

func TestDisabledRecorderNeverOpensAFile(t *testing.T) {
	withTempEventsDir(t)

	r := New(false)
	r.Log("upsert_torrent", map[string]interface{}{"id": 1})
	r.Close()

	entries, err := os.ReadDir(eventsDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 0 {
		t.Fatalf("expected no event files, got %d", len(entries))
	}
}

func TestLogAppendsOneJSONLinePerEvent(t *testing.T) {
	withTempEventsDir(t)

	r := New(true)

	r.Log("upsert_torrent", map[string]interface{}{"id": float64(10)})
	r.Log("destroy_user", map[string]interface{}{"id": float64(12)})

	r.Close()

	f, err := openEventFile(time.Now())
	if err != nil {
		t.Fatalf("openEventFile: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	var lines []map[string]interface{}

	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
		}

		lines = append(lines, entry)
	}

	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 recorded lines, got %d", len(lines))
	}

	if lines[0]["action"] != "upsert_torrent" || lines[0]["id"] != float64(10) {
		t.Errorf("unexpected first entry: %+v", lines[0])
	}

	if lines[1]["action"] != "destroy_user" || lines[1]["id"] != float64(12) {
		t.Errorf("unexpected second entry: %+v", lines[1])
	}

	if _, ok := lines[0]["time"]; !ok {
		t.Errorf("expected a time field on recorded entries")
	}
}

func TestNilRecorderIsANoOp(t *testing.T) {
	var r *Recorder

	r.Log("upsert_torrent", map[string]interface{}{"id": 1})
	r.Close()
}
