package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/meshdrop/meshdrop/internal/wsclient"
	"github.com/meshdrop/meshdrop/pkg/protocol"
)

// client wraps a signaling connection to meshdropd and implements
// transferengine.Signaler over it, so the transfer engine's ICE handshake
// can ride the same websocket the control-plane messages use.
type client struct {
	conn   *wsclient.Conn
	peerID string
	logger *slog.Logger

	credCh     chan protocol.IceCredentials
	candCh     chan protocol.IceCandidates
	startedCh  chan protocol.UploadStarted
	positionCh chan protocol.PositionReport
	peerJoined chan protocol.PeerInfo
	errCh      chan protocol.Error
}

// createSession asks the server for a fresh session, returning its join
// code, without opening a websocket.
func createSession(serverURL string) (sessionID, joinCode string, err error) {
	resp, err := http.Post(strings.TrimSuffix(serverURL, "/")+"/session", "application/json", nil)
	if err != nil {
		return "", "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("create session: server returned %s", resp.Status)
	}
	var body struct {
		SessionID string `json:"session_id"`
		JoinCode  string `json:"join_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("decode session response: %w", err)
	}
	return body.SessionID, body.JoinCode, nil
}

func connect(ctx context.Context, serverURL, joinCode, peerID, role string, logger *slog.Logger) (*client, error) {
	u, err := url.Parse(strings.TrimSuffix(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("join_code", joinCode)
	q.Set("peer_id", peerID)
	q.Set("role", role)
	u.RawQuery = q.Encode()

	conn, err := wsclient.Dial(ctx, u.String(), logger)
	if err != nil {
		return nil, err
	}

	c := &client{
		conn:       conn,
		peerID:     peerID,
		logger:     logger,
		credCh:     make(chan protocol.IceCredentials, 4),
		candCh:     make(chan protocol.IceCandidates, 4),
		startedCh:  make(chan protocol.UploadStarted, 4),
		positionCh: make(chan protocol.PositionReport, 4),
		peerJoined: make(chan protocol.PeerInfo, 16),
		errCh:      make(chan protocol.Error, 4),
	}

	go func() {
		if err := conn.ReadLoop(ctx, c.dispatch); err != nil {
			logger.Debug("read loop ended", "error", err)
		}
	}()

	return c, nil
}

func (c *client) dispatch(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeIceCredentials:
		var m protocol.IceCredentials
		if env.DecodePayload(&m) == nil {
			c.credCh <- m
		}
	case protocol.TypeIceCandidates:
		var m protocol.IceCandidates
		if env.DecodePayload(&m) == nil {
			c.candCh <- m
		}
	case protocol.TypeUploadStarted:
		var m protocol.UploadStarted
		if env.DecodePayload(&m) == nil {
			c.startedCh <- m
		}
	case protocol.TypePositionReport:
		var m protocol.PositionReport
		if env.DecodePayload(&m) == nil {
			c.positionCh <- m
		}
	case protocol.TypePeerJoined:
		var m protocol.PeerJoined
		if env.DecodePayload(&m) == nil {
			c.peerJoined <- m.Peer
		}
	case protocol.TypeError:
		var m protocol.Error
		if env.DecodePayload(&m) == nil {
			c.errCh <- m
		}
	}
}

func (c *client) send(msgType, to string, payload any) error {
	env, err := protocol.NewEnvelope(msgType, protocol.NewMsgID(), payload)
	if err != nil {
		return err
	}
	env.To = to
	return c.conn.Send(env)
}

// ExchangeCredentials implements transferengine.Signaler.
func (c *client) ExchangeCredentials(ctx context.Context, peerID, localUfrag, localPwd string) (string, string, error) {
	if err := c.send(protocol.TypeIceCredentials, peerID, protocol.IceCredentials{Ufrag: localUfrag, Pwd: localPwd}); err != nil {
		return "", "", err
	}
	select {
	case m := <-c.credCh:
		return m.Ufrag, m.Pwd, nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// ExchangeCandidates implements transferengine.Signaler.
func (c *client) ExchangeCandidates(ctx context.Context, peerID string, local []string) ([]string, error) {
	if err := c.send(protocol.TypeIceCandidates, peerID, protocol.IceCandidates{Candidates: local}); err != nil {
		return nil, err
	}
	select {
	case m := <-c.candCh:
		return m.Candidates, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// awaitPeer blocks until some other peer has joined the session, returning
// the first one seen (recv only ever expects the sender it's paired with).
func (c *client) awaitPeer(ctx context.Context) (protocol.PeerInfo, error) {
	select {
	case p := <-c.peerJoined:
		return p, nil
	case <-ctx.Done():
		return protocol.PeerInfo{}, ctx.Err()
	}
}

func (c *client) waitUploadStarted(ctx context.Context, filename string) error {
	for {
		select {
		case m := <-c.startedCh:
			if m.Filename == filename {
				return nil
			}
		case e := <-c.errCh:
			return fmt.Errorf("server error: %s: %s", e.Code, e.Message)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *client) queryPosition(ctx context.Context, filename string) (protocol.PositionReport, error) {
	if err := c.send(protocol.TypePositionQuery, "", protocol.PositionQuery{Filename: filename}); err != nil {
		return protocol.PositionReport{}, err
	}
	select {
	case r := <-c.positionCh:
		return r, nil
	case <-ctx.Done():
		return protocol.PositionReport{}, ctx.Err()
	}
}

func (c *client) enqueueUpload(filename, manifestID string) error {
	return c.send(protocol.TypeEnqueueUpload, "", protocol.EnqueueUpload{Filename: filename, ManifestID: manifestID})
}

func (c *client) awaitStart(filename string) error {
	return c.send(protocol.TypeAwaitStart, "", protocol.AwaitStart{Filename: filename})
}

func (c *client) completeUpload(filename string) error {
	return c.send(protocol.TypeCompleteUpload, "", protocol.CompleteUpload{Filename: filename})
}

func (c *client) close() error {
	return c.conn.Close()
}
