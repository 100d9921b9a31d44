package config

import (
	"flag"
	"os"
	"testing"
	"time"
)

func TestParseServerConfig_Defaults(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{})

	if cfg.Addr != ":8080" {
		t.Errorf("expected Addr to be :8080, got %s", cfg.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel to be info, got %s", cfg.LogLevel)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Errorf("expected SessionTimeout to be 30m, got %s", cfg.SessionTimeout)
	}
	if cfg.GlobalSlots != 4 {
		t.Errorf("expected GlobalSlots to be 4, got %d", cfg.GlobalSlots)
	}
	if cfg.DefaultSlots != 3 {
		t.Errorf("expected DefaultSlots to be 3, got %d", cfg.DefaultSlots)
	}
	if cfg.LeechersSlots != 1 {
		t.Errorf("expected LeechersSlots to be 1, got %d", cfg.LeechersSlots)
	}
	if cfg.MaxMessageBytes != 1<<20 {
		t.Errorf("expected MaxMessageBytes to be 1MiB, got %d", cfg.MaxMessageBytes)
	}
	if len(cfg.StunServers) == 0 {
		t.Errorf("expected default StunServers to be populated")
	}
	if cfg.GroupConfigPath != "" {
		t.Errorf("expected GroupConfigPath to be empty by default, got %s", cfg.GroupConfigPath)
	}
}

func TestParseServerConfig_Flags(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{
		"-addr", ":9090",
		"-log-level", "debug",
		"-group-config", "/etc/meshdrop/groups.yaml",
		"-global-slots", "10",
		"-default-slots", "7",
		"-leechers-slots", "2",
	})

	if cfg.Addr != ":9090" {
		t.Errorf("expected Addr to be :9090, got %s", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel to be debug, got %s", cfg.LogLevel)
	}
	if cfg.GroupConfigPath != "/etc/meshdrop/groups.yaml" {
		t.Errorf("expected GroupConfigPath to be set, got %s", cfg.GroupConfigPath)
	}
	if cfg.GlobalSlots != 10 {
		t.Errorf("expected GlobalSlots to be 10, got %d", cfg.GlobalSlots)
	}
	if cfg.DefaultSlots != 7 {
		t.Errorf("expected DefaultSlots to be 7, got %d", cfg.DefaultSlots)
	}
	if cfg.LeechersSlots != 2 {
		t.Errorf("expected LeechersSlots to be 2, got %d", cfg.LeechersSlots)
	}
}

func TestParseServerConfig_StunFlagRepeatable(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{
		"-stun", "stun:a.example.com:3478",
		"-stun", "stun:b.example.com:3478",
	})

	if len(cfg.StunServers) != 2 {
		t.Fatalf("expected 2 stun servers, got %d (%v)", len(cfg.StunServers), cfg.StunServers)
	}
	if cfg.StunServers[0] != "stun:a.example.com:3478" || cfg.StunServers[1] != "stun:b.example.com:3478" {
		t.Errorf("unexpected stun servers: %v", cfg.StunServers)
	}
}

func TestParseServerConfig_EnvFallback(t *testing.T) {
	os.Clearenv()

	os.Setenv("MESHDROP_ADDR", ":7070")
	os.Setenv("MESHDROP_LOG_LEVEL", "warn")
	os.Setenv("MESHDROP_GROUP_CONFIG", "/tmp/groups.yaml")
	os.Setenv("MESHDROP_TURN_SECRET", "s3cr3t")
	defer os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{})

	if cfg.Addr != ":7070" {
		t.Errorf("expected Addr to be :7070, got %s", cfg.Addr)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected LogLevel to be warn, got %s", cfg.LogLevel)
	}
	if cfg.GroupConfigPath != "/tmp/groups.yaml" {
		t.Errorf("expected GroupConfigPath to be /tmp/groups.yaml, got %s", cfg.GroupConfigPath)
	}
	if cfg.TurnStaticSecret != "s3cr3t" {
		t.Errorf("expected TurnStaticSecret to be s3cr3t, got %s", cfg.TurnStaticSecret)
	}
}

func TestParseServerConfig_FlagsOverrideEnv(t *testing.T) {
	os.Clearenv()

	os.Setenv("MESHDROP_ADDR", ":7070")
	os.Setenv("MESHDROP_LOG_LEVEL", "warn")
	defer os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{"-addr", ":9090", "-log-level", "error"})

	if cfg.Addr != ":9090" {
		t.Errorf("expected Addr to be :9090 (from flag), got %s", cfg.Addr)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("expected LogLevel to be error (from flag), got %s", cfg.LogLevel)
	}
}

func TestParseClientConfig_Defaults(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseClientConfigWithFlagSet(fs, []string{})

	if cfg.ServerURL != "http://localhost:8080" {
		t.Errorf("expected ServerURL to be http://localhost:8080, got %s", cfg.ServerURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel to be info, got %s", cfg.LogLevel)
	}
	if cfg.PeerID == "" || len(cfg.PeerID) != 10 {
		t.Errorf("expected PeerID to be 10 hex characters, got %s (len=%d)", cfg.PeerID, len(cfg.PeerID))
	}
}

func TestParseClientConfig_Flags(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseClientConfigWithFlagSet(fs, []string{"-server-url", "http://example.com:9090", "-log-level", "debug", "-peer-id", "abc123def4"})

	if cfg.ServerURL != "http://example.com:9090" {
		t.Errorf("expected ServerURL to be http://example.com:9090, got %s", cfg.ServerURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel to be debug, got %s", cfg.LogLevel)
	}
	if cfg.PeerID != "abc123def4" {
		t.Errorf("expected PeerID to be abc123def4, got %s", cfg.PeerID)
	}
}

func TestParseClientConfig_EnvFallback(t *testing.T) {
	os.Clearenv()

	os.Setenv("MESHDROP_SERVER_URL", "http://env.example.com:7070")
	os.Setenv("MESHDROP_LOG_LEVEL", "warn")
	os.Setenv("MESHDROP_PEER_ID", "envpeer123")
	defer os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseClientConfigWithFlagSet(fs, []string{})

	if cfg.ServerURL != "http://env.example.com:7070" {
		t.Errorf("expected ServerURL to be http://env.example.com:7070, got %s", cfg.ServerURL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected LogLevel to be warn, got %s", cfg.LogLevel)
	}
	if cfg.PeerID != "envpeer123" {
		t.Errorf("expected PeerID to be envpeer123, got %s", cfg.PeerID)
	}
}

func TestParseClientConfig_FlagsOverrideEnv(t *testing.T) {
	os.Clearenv()

	os.Setenv("MESHDROP_SERVER_URL", "http://env.example.com:7070")
	os.Setenv("MESHDROP_LOG_LEVEL", "warn")
	os.Setenv("MESHDROP_PEER_ID", "envpeer123")
	os.Setenv("MESHDROP_JOIN_CODE", "ENVCODE")
	defer os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseClientConfigWithFlagSet(fs, []string{"-server-url", "http://flag.example.com:9090", "-log-level", "error", "-peer-id", "flagpeer456", "-join-code", "FLAGCODE"})

	if cfg.ServerURL != "http://flag.example.com:9090" {
		t.Errorf("expected ServerURL to be http://flag.example.com:9090 (from flag), got %s", cfg.ServerURL)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("expected LogLevel to be error (from flag), got %s", cfg.LogLevel)
	}
	if cfg.PeerID != "flagpeer456" {
		t.Errorf("expected PeerID to be flagpeer456 (from flag), got %s", cfg.PeerID)
	}
	if cfg.JoinCode != "FLAGCODE" {
		t.Errorf("expected JoinCode to be FLAGCODE (from flag), got %s", cfg.JoinCode)
	}
}

func TestParseClientConfig_JoinCode_Flag(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseClientConfigWithFlagSet(fs, []string{"-join-code", "ABCDEFGH"})

	if cfg.JoinCode != "ABCDEFGH" {
		t.Errorf("expected JoinCode to be ABCDEFGH, got %s", cfg.JoinCode)
	}
}

func TestParseClientConfig_JoinCode_Env(t *testing.T) {
	os.Clearenv()

	os.Setenv("MESHDROP_JOIN_CODE", "XYZ12345")
	defer os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseClientConfigWithFlagSet(fs, []string{})

	if cfg.JoinCode != "XYZ12345" {
		t.Errorf("expected JoinCode to be XYZ12345, got %s", cfg.JoinCode)
	}
}

func TestParseClientConfig_JoinCode_Default(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseClientConfigWithFlagSet(fs, []string{})

	if cfg.JoinCode != "" {
		t.Errorf("expected JoinCode to be empty by default, got %s", cfg.JoinCode)
	}
}

func TestParseClientConfig_JoinCode_FlagOverridesEnv(t *testing.T) {
	os.Clearenv()

	os.Setenv("MESHDROP_JOIN_CODE", "ENVCODE")
	defer os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseClientConfigWithFlagSet(fs, []string{"-join-code", "FLAGCODE"})

	if cfg.JoinCode != "FLAGCODE" {
		t.Errorf("expected JoinCode to be FLAGCODE (from flag), got %s", cfg.JoinCode)
	}
}
