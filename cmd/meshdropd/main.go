// Command meshdropd is the control-plane server: it brokers signaling
// sessions between peers over WebSocket and runs the upload admission
// scheduler that decides which enqueued upload may start next.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meshdrop/meshdrop/internal/config"
	"github.com/meshdrop/meshdrop/internal/groupconfig"
	"github.com/meshdrop/meshdrop/internal/logging"
	"github.com/meshdrop/meshdrop/internal/metrics"
	"github.com/meshdrop/meshdrop/internal/peers"
	"github.com/meshdrop/meshdrop/internal/scheduler"
	"github.com/meshdrop/meshdrop/internal/session"
	"github.com/meshdrop/meshdrop/internal/termio"
	"github.com/meshdrop/meshdrop/internal/userdir"
	"github.com/meshdrop/meshdrop/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const serverVersion = "v0.1.0"

func main() {
	if hasHelpFlag(os.Args[1:]) {
		printServerUsage()
		return
	}
	if hasVersionFlag(os.Args[1:]) {
		fmt.Fprintln(termio.Stdout(), serverVersion)
		return
	}
	cfg := config.ParseServerConfig()
	logger := logging.New("meshdropd", cfg.LogLevel)

	fmt.Fprintf(termio.Stdout(), "starting server addr=%s\n", cfg.Addr)

	store := session.NewStore(cfg.SessionTimeout)
	expiry := newSessionExpiryManager()
	hub := peers.NewHub()
	limits := newServerLimits(cfg)
	turnIssuer := newTurnIssuer(cfg, logger)

	userDir := userdir.New(scheduler.DefaultGroup)
	sched := scheduler.New(userDir, scheduler.WithLogger(logger))
	metricsReg := metrics.New()

	if err := bootstrapSchedulerConfig(sched, cfg, logger); err != nil {
		logger.Error("initial scheduler configuration failed", "error", err)
		os.Exit(1)
	}
	if cfg.GroupConfigPath != "" {
		src := groupconfig.NewFileSource(cfg.GroupConfigPath, time.Second, func(opts groupconfig.Options) {
			if err := sched.Configure(adaptGroupOptions(opts, cfg.GlobalSlots)); err != nil {
				logger.Error("group configuration reload rejected", "error", err)
			}
		}, logger)
		go src.Run(context.Background())
	}

	go scrapeSchedulerLoop(context.Background(), sched, metricsReg, 5*time.Second)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	http.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if limits.maxSessions > 0 && store.Count() >= limits.maxSessions {
			sendError(w, http.StatusTooManyRequests, "session limit reached")
			return
		}

		sess := store.Create()

		if !sess.ExpiresAt.IsZero() {
			ttl := time.Until(sess.ExpiresAt)
			if ttl > 0 {
				expiry.schedule(sess.ID, ttl, func() {
					store.Delete(sess.ID)
					fmt.Fprintf(termio.Stdout(), "session expired session_id=%s join_code=%s\n", sess.ID, sess.JoinCode)
				})
			}
		}

		response := map[string]any{
			"session_id": sess.ID,
			"join_code":  sess.JoinCode,
		}
		if !sess.ExpiresAt.IsZero() {
			response["expires_at"] = sess.ExpiresAt.Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error("failed to encode response", "error", err)
		}
		fmt.Fprintf(termio.Stdout(), "session created session_id=%s join_code=%s\n", sess.ID, sess.JoinCode)
	})

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, store, hub, expiry, sched, userDir, metricsReg, logger, limits, turnIssuer)
	})

	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// bootstrapSchedulerConfig applies the group configuration source at
// startup: the YAML file if one is configured, else the flag-derived
// two-group default (default + leechers, both FIFO).
func bootstrapSchedulerConfig(sched *scheduler.Scheduler, cfg config.ServerConfig, logger *slog.Logger) error {
	if cfg.GroupConfigPath != "" {
		src := groupconfig.NewFileSource(cfg.GroupConfigPath, time.Second, nil, logger)
		opts, err := src.Load()
		if err != nil {
			return err
		}
		return sched.Configure(adaptGroupOptions(opts, cfg.GlobalSlots))
	}
	return sched.Configure(scheduler.Options{
		GlobalSlots: cfg.GlobalSlots,
		Default: scheduler.GroupSpec{
			Priority: 1,
			Slots:    cfg.DefaultSlots,
			Strategy: scheduler.StrategyFIFO,
		},
		Leechers: scheduler.GroupSpec{
			Priority: 2,
			Slots:    cfg.LeechersSlots,
			Strategy: scheduler.StrategyFIFO,
		},
	})
}

// adaptGroupOptions maps a groupconfig.Options snapshot, which knows
// nothing about internal/scheduler, onto scheduler.Options at the one call
// site where both packages meet.
func adaptGroupOptions(o groupconfig.Options, fallbackGlobalSlots int) scheduler.Options {
	globalSlots := o.GlobalSlots
	if globalSlots == 0 {
		globalSlots = fallbackGlobalSlots
	}
	opts := scheduler.Options{
		GlobalSlots: globalSlots,
		Default:     adaptGroupSpec(o.Default),
		Leechers:    adaptGroupSpec(o.Leechers),
	}
	if len(o.UserDefined) > 0 {
		opts.UserDefined = make(map[string]scheduler.GroupSpec, len(o.UserDefined))
		for name, g := range o.UserDefined {
			opts.UserDefined[name] = adaptGroupSpec(g)
		}
	}
	return opts
}

func adaptGroupSpec(g groupconfig.GroupSpec) scheduler.GroupSpec {
	strategy, err := scheduler.ParseStrategy(string(g.Strategy))
	if err != nil {
		strategy = scheduler.StrategyFIFO
	}
	return scheduler.GroupSpec{Priority: g.Priority, Slots: g.Slots, Strategy: strategy}
}

// scrapeSchedulerLoop periodically adapts scheduler.Scheduler's Stats/
// QueueDepth snapshot into metrics.GroupStats and publishes it, until ctx
// is cancelled.
func scrapeSchedulerLoop(ctx context.Context, sched *scheduler.Scheduler, reg *metrics.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			globalSlots, groups := sched.Stats()
			adapted := make([]metrics.GroupStats, 0, len(groups)+1)
			for _, g := range groups {
				adapted = append(adapted, metrics.GroupStats{Name: g.Name, UsedSlots: g.UsedSlots, Slots: g.Slots})
			}
			adapted = append(adapted, metrics.GroupStats{Name: "global", UsedSlots: 0, Slots: globalSlots})
			reg.ScrapeSchedulerState(adapted, sched.QueueDepth())
		}
	}
}

type tokenBucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
	rate   float64
	burst  float64
}

func newTokenBucket(ratePerSec float64, burst int) *tokenBucket {
	if ratePerSec < 0 {
		ratePerSec = 0
	}
	if burst < 1 {
		burst = 1
	}
	return &tokenBucket{tokens: float64(burst), last: time.Now(), rate: ratePerSec, burst: float64(burst)}
}

func (b *tokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

type sessionExpiryManager struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newSessionExpiryManager() *sessionExpiryManager {
	return &sessionExpiryManager{timers: make(map[string]*time.Timer)}
}

func (m *sessionExpiryManager) schedule(sessionID string, ttl time.Duration, fn func()) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	if existing := m.timers[sessionID]; existing != nil {
		existing.Stop()
	}
	timer := time.AfterFunc(ttl, func() {
		fn()
		m.mu.Lock()
		delete(m.timers, sessionID)
		m.mu.Unlock()
	})
	m.timers[sessionID] = timer
	m.mu.Unlock()
}

func (m *sessionExpiryManager) cancel(sessionID string) {
	m.mu.Lock()
	if timer := m.timers[sessionID]; timer != nil {
		timer.Stop()
		delete(m.timers, sessionID)
	}
	m.mu.Unlock()
}

type serverLimits struct {
	maxSessions       int
	maxMessageBytes   int
	connectRatePerSec float64
	connectBurst      int
	msgRatePerSec     float64
	msgBurst          int
	wsIdleTimeout     time.Duration
}

func newServerLimits(cfg config.ServerConfig) serverLimits {
	connectRate := float64(cfg.WSConnectsPerMin) / 60.0
	if cfg.WSConnectsPerMin <= 0 {
		connectRate = 0
	}
	msgRate := float64(cfg.WSMsgsPerSec)
	if cfg.WSMsgsPerSec <= 0 {
		msgRate = 0
	}
	return serverLimits{
		maxSessions:       cfg.MaxSessions,
		maxMessageBytes:   cfg.MaxMessageBytes,
		connectRatePerSec: connectRate,
		connectBurst:      cfg.WSConnectsBurst,
		msgRatePerSec:     msgRate,
		msgBurst:          cfg.WSMsgsBurst,
		wsIdleTimeout:     cfg.WSIdleTimeout,
	}
}

type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64
	burst   int
}

func newIPLimiter(ratePerSec float64, burst int) *ipLimiter {
	return &ipLimiter{buckets: make(map[string]*tokenBucket), rate: ratePerSec, burst: burst}
}

func (l *ipLimiter) SetLimits(ratePerSec float64, burst int) {
	l.mu.Lock()
	l.rate = ratePerSec
	l.burst = burst
	l.mu.Unlock()
}

func (l *ipLimiter) Allow(ip string) bool {
	l.mu.Lock()
	rate := l.rate
	burst := l.burst
	l.mu.Unlock()
	if rate <= 0 {
		return true
	}
	l.mu.Lock()
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = newTokenBucket(rate, burst)
		l.buckets[ip] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

var wsIPLimiter = newIPLimiter(0, 1)

func handleWebSocket(w http.ResponseWriter, r *http.Request, store *session.Store, hub *peers.Hub, expiry *sessionExpiryManager, sched *scheduler.Scheduler, userDir *userdir.Directory, metricsReg *metrics.Registry, logger *slog.Logger, limits serverLimits, turnIssuer *turnIssuer) {
	joinCode := r.URL.Query().Get("join_code")
	peerID := r.URL.Query().Get("peer_id")
	role := r.URL.Query().Get("role")

	if joinCode == "" {
		sendError(w, http.StatusBadRequest, "missing join_code")
		return
	}
	sess, found := store.GetByJoinCode(joinCode)
	if !found {
		sendError(w, http.StatusNotFound, "invalid or expired join_code")
		return
	}
	if peerID == "" {
		sendError(w, http.StatusBadRequest, "missing peer_id")
		return
	}
	if role != "sender" && role != "receiver" {
		sendError(w, http.StatusBadRequest, "role must be 'sender' or 'receiver'")
		return
	}

	if limits.connectRatePerSec > 0 {
		wsIPLimiter.SetLimits(limits.connectRatePerSec, limits.connectBurst)
		if ip := clientIP(r); ip != "" && !wsIPLimiter.Allow(ip) {
			sendError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	if limits.maxMessageBytes > 0 {
		conn.SetReadLimit(int64(limits.maxMessageBytes))
	}

	var writeMu sync.Mutex
	if limits.wsIdleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(limits.wsIdleTimeout))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(limits.wsIdleTimeout))
			return nil
		})
	}

	connID := protocol.NewMsgID()
	peer := peers.Peer{PeerID: peerID, Role: role, ConnID: connID}

	sendFunc := func(env protocol.Envelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(env)
	}

	removePeer := hub.Add(sess.ID, peer, sendFunc)
	defer removePeer()

	if role == "receiver" {
		userDir.Join(peerID, userdir.RoleReceiver)
	} else {
		userDir.Join(peerID, userdir.RoleSender)
	}
	defer userDir.Leave(peerID)

	connCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if limits.wsIdleTimeout > 0 {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-connCtx.Done():
					return
				case <-ticker.C:
					writeMu.Lock()
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
					writeMu.Unlock()
				}
			}
		}()
	}

	fmt.Fprintf(termio.Stdout(), "peer connected session_id=%s peer_id=%s role=%s conn_id=%s\n", sess.ID, peerID, role, connID)

	peerListEnv, _ := protocol.NewEnvelope(protocol.TypePeerList, protocol.NewMsgID(), protocol.PeerList{Peers: hub.List(sess.ID)})
	peerListEnv.SessionID = sess.ID
	peerListEnv.From = "server"
	if err := sendFunc(peerListEnv); err != nil {
		logger.Error("failed to send peer list", "error", err)
		return
	}

	if turnIssuer != nil {
		if turnCreds, err := turnIssuer.Issue(peerID); err != nil {
			logger.Error("failed to issue turn credentials", "error", err, "peer_id", peerID)
		} else if len(turnCreds.Servers) > 0 {
			turnEnv, _ := protocol.NewEnvelope(protocol.TypeTurnCredentials, protocol.NewMsgID(), turnCreds)
			turnEnv.SessionID = sess.ID
			turnEnv.From = "server"
			turnEnv.To = peerID
			_ = sendFunc(turnEnv)
		}
	}

	peerJoinedEnv, _ := protocol.NewEnvelope(protocol.TypePeerJoined, protocol.NewMsgID(), protocol.PeerJoined{
		Peer: protocol.PeerInfo{PeerID: peerID, Role: role},
	})
	peerJoinedEnv.SessionID = sess.ID
	peerJoinedEnv.From = "server"
	hub.Broadcast(sess.ID, peerJoinedEnv)

	defer func() {
		peerLeftEnv, err := protocol.NewEnvelope(protocol.TypePeerLeft, protocol.NewMsgID(), protocol.PeerLeft{PeerID: peerID})
		if err != nil {
			return
		}
		peerLeftEnv.SessionID = sess.ID
		peerLeftEnv.From = "server"
		hub.Broadcast(sess.ID, peerLeftEnv)
		fmt.Fprintf(termio.Stdout(), "peer disconnected session_id=%s peer_id=%s\n", sess.ID, peerID)
		if role == "sender" {
			expiry.cancel(sess.ID)
			store.Delete(sess.ID)
		}
	}()

	maxMessageSize := limits.maxMessageBytes
	if maxMessageSize <= 0 {
		maxMessageSize = 64 * 1024
	}
	msgLimiter := newTokenBucket(limits.msgRatePerSec, limits.msgBurst)
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				logger.Info("websocket idle timeout", "peer_id", peerID)
			}
			break
		}
		if limits.wsIdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(limits.wsIdleTimeout))
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if limits.msgRatePerSec > 0 && !msgLimiter.Allow() {
			logger.Warn("websocket message rate limit exceeded", "peer_id", peerID)
			conn.Close()
			break
		}
		if len(message) > maxMessageSize {
			logger.Warn("message too large", "size", len(message), "max", maxMessageSize, "peer_id", peerID)
			conn.Close()
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Warn("invalid JSON envelope", "error", err, "peer_id", peerID)
			continue
		}
		if err := env.ValidateBasic(); err != nil {
			logger.Warn("invalid envelope", "error", err, "peer_id", peerID)
			continue
		}
		env.From = peerID
		if env.SessionID == "" {
			env.SessionID = sess.ID
		}

		if env.Type == protocol.TypeEnqueueUpload && userDir.RoleOf(peerID) == userdir.RoleReceiver {
			logger.Warn("enqueue_upload rejected from receiver-role peer", "peer_id", peerID)
			continue
		}
		if handled := routeSchedulerEnvelope(connCtx, env, peerID, sess.ID, sched, metricsReg, sendFunc, logger); handled {
			continue
		}

		if env.To != "" {
			if !hub.SendTo(sess.ID, env.To, env) {
				errEnv, err := protocol.NewEnvelope(protocol.TypeError, protocol.NewMsgID(), protocol.Error{
					Code:    "peer_not_found",
					Message: "target peer not found: " + env.To,
				})
				if err == nil {
					errEnv.SessionID = sess.ID
					errEnv.From = "server"
					errEnv.To = peerID
					_ = sendFunc(errEnv)
				}
			}
		} else {
			hub.BroadcastExcept(sess.ID, peerID, env)
		}
	}
}

// routeSchedulerEnvelope handles the envelope types that address the
// scheduler rather than another peer. It reports whether env was one of
// those types, so the caller can fall through to ordinary relay otherwise.
func routeSchedulerEnvelope(ctx context.Context, env protocol.Envelope, peerID, sessionID string, sched *scheduler.Scheduler, metricsReg *metrics.Registry, sendFunc func(protocol.Envelope) error, logger *slog.Logger) bool {
	switch env.Type {
	case protocol.TypeEnqueueUpload:
		var msg protocol.EnqueueUpload
		if err := env.DecodePayload(&msg); err != nil {
			logger.Warn("invalid enqueue_upload payload", "error", err, "peer_id", peerID)
			return true
		}
		if msg.ManifestID != "" {
			logger.Info("upload enqueued", "peer_id", peerID, "filename", msg.Filename, "manifest_id", msg.ManifestID)
		}
		sched.Enqueue(peerID, msg.Filename)
		return true

	case protocol.TypeAwaitStart:
		var msg protocol.AwaitStart
		if err := env.DecodePayload(&msg); err != nil {
			logger.Warn("invalid await_start payload", "error", err, "peer_id", peerID)
			return true
		}
		future, err := sched.AwaitStart(peerID, msg.Filename)
		if err != nil {
			logger.Warn("await_start rejected", "error", err, "peer_id", peerID, "filename", msg.Filename)
			return true
		}
		go func() {
			started := time.Now()
			if err := future.Wait(ctx); err != nil {
				return
			}
			metricsReg.TimeAdmission(time.Since(started))
			env, err := protocol.NewEnvelope(protocol.TypeUploadStarted, protocol.NewMsgID(), protocol.UploadStarted{Filename: msg.Filename})
			if err != nil {
				return
			}
			env.SessionID = sessionID
			env.From = "server"
			env.To = peerID
			_ = sendFunc(env)
		}()
		return true

	case protocol.TypeCompleteUpload:
		var msg protocol.CompleteUpload
		if err := env.DecodePayload(&msg); err != nil {
			logger.Warn("invalid complete_upload payload", "error", err, "peer_id", peerID)
			return true
		}
		if err := sched.Complete(peerID, msg.Filename); err != nil {
			logger.Warn("complete_upload rejected", "error", err, "peer_id", peerID, "filename", msg.Filename)
		}
		return true

	case protocol.TypePositionQuery:
		var msg protocol.PositionQuery
		_ = env.DecodePayload(&msg)
		var position int
		if msg.Filename != "" {
			pos, err := sched.EstimatePositionForUpload(peerID, msg.Filename)
			if err != nil {
				logger.Warn("position_query rejected", "error", err, "peer_id", peerID, "filename", msg.Filename)
				return true
			}
			position = pos
		} else {
			position = sched.EstimatePosition(peerID)
		}
		report, err := protocol.NewEnvelope(protocol.TypePositionReport, protocol.NewMsgID(), protocol.PositionReport{
			Filename:      msg.Filename,
			Position:      position,
			SlotAvailable: sched.IsSlotAvailable(peerID),
		})
		if err != nil {
			return true
		}
		report.SessionID = sessionID
		report.From = "server"
		report.To = peerID
		_ = sendFunc(report)
		return true
	}
	return false
}

func sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func printServerUsage() {
	fmt.Fprintln(termio.Stderr(), "usage: meshdropd [flags]")
	fmt.Fprintln(termio.Stderr(), "  -addr ADDR                  server address (default :8080)")
	fmt.Fprintln(termio.Stderr(), "  -max-sessions N              max concurrent sessions (0 = unlimited)")
	fmt.Fprintln(termio.Stderr(), "  -group-config PATH           YAML upload group config, polled for changes")
	fmt.Fprintln(termio.Stderr(), "  -global-slots N               max concurrent admitted uploads")
	fmt.Fprintln(termio.Stderr(), "  -default-slots N              slots reserved for the default group")
	fmt.Fprintln(termio.Stderr(), "  -leechers-slots N             slots reserved for the leechers group")
	fmt.Fprintln(termio.Stderr(), "  -ws-connects-per-min N        per-IP websocket connect rate limit")
	fmt.Fprintln(termio.Stderr(), "  -ws-msgs-per-sec N            per-connection message rate limit")
	fmt.Fprintln(termio.Stderr(), "  -max-message-bytes N          max websocket message size")
	fmt.Fprintln(termio.Stderr(), "  -ws-idle-timeout DURATION     idle timeout before ping/drop")
	fmt.Fprintln(termio.Stderr(), "  -session-timeout DURATION     signaling session TTL")
	fmt.Fprintln(termio.Stderr(), "  -stun URL                    STUN server URL (repeatable)")
	fmt.Fprintln(termio.Stderr(), "  -turn-server URL              TURN server URL (repeatable)")
	fmt.Fprintln(termio.Stderr(), "  -turn-static-secret S         TURN REST static auth secret")
	fmt.Fprintln(termio.Stderr(), "  -turn-cred-ttl DURATION       TURN credential TTL")
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type turnIssuer struct {
	servers []string
	secret  []byte
	ttl     time.Duration
}

func newTurnIssuer(cfg config.ServerConfig, logger *slog.Logger) *turnIssuer {
	if len(cfg.TurnServers) == 0 || cfg.TurnStaticSecret == "" {
		if len(cfg.TurnServers) == 0 && cfg.TurnStaticSecret != "" {
			logger.Warn("TURN static secret set but no TURN servers configured")
		}
		if len(cfg.TurnServers) > 0 && cfg.TurnStaticSecret == "" {
			logger.Warn("TURN servers configured but no static secret set")
		}
		return nil
	}
	ttl := cfg.TurnCredTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger.Info("TURN credential issuer enabled", "servers", len(cfg.TurnServers), "ttl", ttl)
	return &turnIssuer{servers: cfg.TurnServers, secret: []byte(cfg.TurnStaticSecret), ttl: ttl}
}

func (t *turnIssuer) Issue(peerID string) (protocol.TurnCredentials, error) {
	if t == nil || len(t.servers) == 0 || len(t.secret) == 0 {
		return protocol.TurnCredentials{}, fmt.Errorf("turn issuer not configured")
	}
	expiry := time.Now().Add(t.ttl).UTC()
	username := fmt.Sprintf("%d:%s", expiry.Unix(), peerID)
	password := buildTurnPassword(t.secret, username)
	servers := make([]string, 0, len(t.servers))
	for _, raw := range t.servers {
		credURL, err := injectTurnCredentials(raw, username, password)
		if err != nil {
			return protocol.TurnCredentials{}, err
		}
		servers = append(servers, credURL)
	}
	return protocol.TurnCredentials{Servers: servers, ExpiresAt: expiry.Format(time.RFC3339)}, nil
}

func buildTurnPassword(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func injectTurnCredentials(raw, username, password string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty TURN server")
	}
	switch {
	case strings.HasPrefix(raw, "turns://"):
	case strings.HasPrefix(raw, "turns:"):
		raw = "turns://" + strings.TrimPrefix(raw, "turns:")
	case strings.HasPrefix(raw, "turn://"):
	case strings.HasPrefix(raw, "turn:"):
		raw = "turn://" + strings.TrimPrefix(raw, "turn:")
	default:
		raw = "turn://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse TURN server: %w", err)
	}
	if u.Scheme != "turn" && u.Scheme != "turns" {
		return "", fmt.Errorf("unsupported TURN scheme %q", u.Scheme)
	}
	if u.Host == "" && u.Path != "" {
		u.Host = u.Path
		u.Path = ""
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing TURN host")
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}
