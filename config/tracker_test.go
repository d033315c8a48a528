package config

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLoadTrackerFromDefaults(t *testing.T) {
	section := ConfigMap{"apikey": "01234567890123456789012345678901"}

	tr, err := loadTrackerFrom(section)
	if err != nil {
		t.Fatalf("loadTrackerFrom: %v", err)
	}

	if tr.NumwantDefault != 50 || tr.NumwantMax != 50 {
		t.Fatalf("unexpected numwant defaults: %+v", tr)
	}

	if tr.UploadFactor != 100 || tr.DownloadFactor != 100 {
		t.Fatalf("unexpected factor defaults: %+v", tr)
	}

	if tr.FlushInterval != 2*time.Second {
		t.Fatalf("unexpected flush interval default: %v", tr.FlushInterval)
	}

	if tr.ListeningPort != 34000 {
		t.Fatalf("unexpected listening port default: %d", tr.ListeningPort)
	}

	if tr.ReloadInterval != 45*time.Second || tr.SerializationInterval != 68*time.Second {
		t.Fatalf("unexpected reload/serialization interval defaults: %+v", tr)
	}

	if tr.IsAdminAuditLoggingEnabled {
		t.Fatalf("expected admin audit logging to default to disabled")
	}
}

func TestLoadTrackerFromOverrides(t *testing.T) {
	section := ConfigMap{
		"apikey":                        "01234567890123456789012345678901",
		"numwant_default":               json.Number("25"),
		"numwant_max":                   json.Number("75"),
		"flush_interval":                json.Number("5"),
		"upload_factor":                 json.Number("200"),
		"require_peer_connectivity":     true,
		"is_connectivity_check_enabled": true,
		"listening_port":                json.Number("9999"),
		"reload_interval":               json.Number("30"),
		"serialization_interval":        json.Number("90"),
		"is_admin_audit_logging_enabled": true,
	}

	tr, err := loadTrackerFrom(section)
	if err != nil {
		t.Fatalf("loadTrackerFrom: %v", err)
	}

	if tr.NumwantDefault != 25 || tr.NumwantMax != 75 {
		t.Fatalf("unexpected numwant overrides: %+v", tr)
	}

	if tr.FlushInterval != 5*time.Second {
		t.Fatalf("unexpected flush interval override: %v", tr.FlushInterval)
	}

	if tr.UploadFactor != 200 {
		t.Fatalf("unexpected upload factor override: %d", tr.UploadFactor)
	}

	if !tr.RequirePeerConnectivity || !tr.IsConnectivityCheckEnabled {
		t.Fatalf("expected connectivity overrides to be honoured: %+v", tr)
	}

	if tr.ListeningPort != 9999 {
		t.Fatalf("unexpected listening port override: %d", tr.ListeningPort)
	}

	if tr.ReloadInterval != 30*time.Second || tr.SerializationInterval != 90*time.Second {
		t.Fatalf("unexpected reload/serialization interval overrides: %+v", tr)
	}

	if !tr.IsAdminAuditLoggingEnabled {
		t.Fatalf("expected admin audit logging override to be honoured")
	}
}

func TestLoadTrackerRejectsShortAPIKey(t *testing.T) {
	section := ConfigMap{"apikey": "too-short"}

	if _, err := loadTrackerFrom(section); err == nil {
		t.Fatalf("expected an error for an apikey shorter than 32 characters")
	}
}

func TestLoadTrackerRejectsMissingAPIKey(t *testing.T) {
	if _, err := loadTrackerFrom(ConfigMap{}); err == nil {
		t.Fatalf("expected an error when apikey is absent entirely")
	}
}
