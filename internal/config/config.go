// Package config parses server and client configuration from flags and
// environment variables, flags taking precedence, in the pattern the rest
// of this codebase uses for every binary.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"os"
	"strings"
	"time"
)

// ServerConfig holds configuration for the meshdropd binary.
type ServerConfig struct {
	Addr             string
	LogLevel         string
	SessionTimeout   time.Duration
	MaxSessions      int
	GroupConfigPath  string // YAML file internal/groupconfig.FileSource polls; empty disables reload
	GlobalSlots      int    // used when GroupConfigPath is empty or its file leaves global_slots at 0
	DefaultSlots     int
	LeechersSlots    int
	WSConnectsPerMin int
	WSConnectsBurst  int
	WSMsgsPerSec     int
	WSMsgsBurst      int
	MaxMessageBytes  int
	WSIdleTimeout    time.Duration
	StunServers      []string
	TurnServers      []string
	TurnStaticSecret string
	TurnCredTTL      time.Duration
}

// ClientConfig holds configuration for the meshdrop CLI.
type ClientConfig struct {
	ServerURL   string
	LogLevel    string
	PeerID      string
	JoinCode    string
	Role        string
	StunServers []string
	OutDir      string
}

// ParseServerConfig parses server configuration from flags and environment
// variables. Flags take precedence over environment variables.
func ParseServerConfig() ServerConfig {
	return parseServerConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

func parseServerConfigWithFlagSet(fs *flag.FlagSet, args []string) ServerConfig {
	cfg := ServerConfig{
		Addr:             ":8080",
		LogLevel:         "info",
		SessionTimeout:   30 * time.Minute,
		MaxSessions:      0,
		GlobalSlots:      4,
		DefaultSlots:     3,
		LeechersSlots:    1,
		WSConnectsPerMin: 0,
		WSConnectsBurst:  1,
		WSMsgsPerSec:     0,
		WSMsgsBurst:      1,
		MaxMessageBytes:  1 << 20,
		WSIdleTimeout:    2 * time.Minute,
		StunServers:      []string{"stun:stun.l.google.com:19302", "stun:stun.cloudflare.com:3478"},
		TurnCredTTL:      1 * time.Hour,
	}

	if v := os.Getenv("MESHDROP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("MESHDROP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MESHDROP_GROUP_CONFIG"); v != "" {
		cfg.GroupConfigPath = v
	}
	if v := os.Getenv("MESHDROP_TURN_SECRET"); v != "" {
		cfg.TurnStaticSecret = v
	}
	fs.DurationVar(&cfg.TurnCredTTL, "turn-cred-ttl", cfg.TurnCredTTL, "TURN credential TTL")
	fs.StringVar(&cfg.TurnStaticSecret, "turn-static-secret", cfg.TurnStaticSecret, "TURN REST static auth secret (coturn use-auth-secret)")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "server address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.DurationVar(&cfg.SessionTimeout, "session-timeout", cfg.SessionTimeout, "signaling session TTL")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "max concurrent sessions (0 = unlimited)")
	fs.StringVar(&cfg.GroupConfigPath, "group-config", cfg.GroupConfigPath, "path to a YAML upload group configuration file, polled for changes")
	fs.IntVar(&cfg.GlobalSlots, "global-slots", cfg.GlobalSlots, "max concurrent admitted uploads (used when -group-config is unset or sets no global_slots)")
	fs.IntVar(&cfg.DefaultSlots, "default-slots", cfg.DefaultSlots, "slots reserved for the default group (used when -group-config is unset)")
	fs.IntVar(&cfg.LeechersSlots, "leechers-slots", cfg.LeechersSlots, "slots reserved for the leechers group (used when -group-config is unset)")
	fs.IntVar(&cfg.WSConnectsPerMin, "ws-connects-per-min", cfg.WSConnectsPerMin, "per-IP websocket connect rate limit (0 = unlimited)")
	fs.IntVar(&cfg.WSMsgsPerSec, "ws-msgs-per-sec", cfg.WSMsgsPerSec, "per-connection message rate limit (0 = unlimited)")
	fs.IntVar(&cfg.MaxMessageBytes, "max-message-bytes", cfg.MaxMessageBytes, "max websocket message size")
	fs.DurationVar(&cfg.WSIdleTimeout, "ws-idle-timeout", cfg.WSIdleTimeout, "idle timeout before a connection is pinged/dropped")

	var stunServers stringSlice
	fs.Var(&stunServers, "stun", "STUN server URL (repeatable)")
	turnServers := stringSlice(cfg.TurnServers)
	fs.Var(&turnServers, "turn-server", "TURN server URL (repeatable), e.g. turns:turn.example.com:5349")
	fs.Parse(args)
	if len(stunServers) > 0 {
		cfg.StunServers = stunServers
	}
	if len(turnServers) > 0 {
		cfg.TurnServers = turnServers
	}

	return cfg
}

// ParseClientConfig parses client configuration from flags and environment
// variables. Flags take precedence over environment variables.
func ParseClientConfig() ClientConfig {
	return parseClientConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

func parseClientConfigWithFlagSet(fs *flag.FlagSet, args []string) ClientConfig {
	cfg := ClientConfig{
		ServerURL:   "http://localhost:8080",
		LogLevel:    "info",
		PeerID:      generatePeerID(),
		Role:        "sender",
		StunServers: []string{"stun:stun.l.google.com:19302", "stun:stun.cloudflare.com:3478"},
		OutDir:      ".",
	}

	if v := os.Getenv("MESHDROP_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("MESHDROP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MESHDROP_PEER_ID"); v != "" {
		cfg.PeerID = v
	}
	if v := os.Getenv("MESHDROP_JOIN_CODE"); v != "" {
		cfg.JoinCode = v
	}

	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "server URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.PeerID, "peer-id", cfg.PeerID, "peer identifier")
	fs.StringVar(&cfg.JoinCode, "join-code", cfg.JoinCode, "session join code")
	fs.StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "directory received files are written to")

	var stunServers stringSlice
	fs.Var(&stunServers, "stun", "STUN server URL (repeatable)")
	fs.Parse(args)
	if len(stunServers) > 0 {
		cfg.StunServers = stunServers
	}

	return cfg
}

// NewPeerID generates a random peer identifier, exported for callers (such
// as cmd/meshdrop's flag defaults) that need one outside of ParseClientConfig.
func NewPeerID() string {
	return generatePeerID()
}

func generatePeerID() string {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "0000000000"
	}
	return hex.EncodeToString(b)
}

// stringSlice implements flag.Value for repeatable string flags.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }
func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

var _ flag.Value = (*stringSlice)(nil)
