package transferengine

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pion/ice/v2"
	"github.com/pkg/errors"
)

// Handshake drives a single pion/ice/v2 Agent through candidate gathering
// and connectivity checks to produce a connected, NAT-traversed net.Conn
// that the QUIC layer treats as its packet transport. Candidate and
// credential exchange themselves ride the control-plane websocket
// (pkg/protocol envelopes); this type only owns the ICE state machine.
type Handshake struct {
	agent  *ice.Agent
	logger *slog.Logger
}

// NewHandshake creates an Agent configured with the given STUN servers.
func NewHandshake(stunURLs []string, logger *slog.Logger) (*Handshake, error) {
	urls := make([]*ice.URL, 0, len(stunURLs))
	for _, raw := range stunURLs {
		u, err := ice.ParseURL(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "transferengine: parsing stun url %q", raw)
		}
		urls = append(urls, u)
	}

	agent, err := ice.NewAgent(&ice.AgentConfig{
		Urls:           urls,
		NetworkTypes:   []ice.NetworkType{ice.NetworkTypeUDP4, ice.NetworkTypeUDP6},
		CandidateTypes: []ice.CandidateType{ice.CandidateTypeHost, ice.CandidateTypeServerReflexive},
	})
	if err != nil {
		return nil, errors.Wrap(err, "transferengine: creating ice agent")
	}
	return &Handshake{agent: agent, logger: logger}, nil
}

// LocalCredentials returns this side's ufrag/password, to be sent to the
// remote peer over the control plane.
func (h *Handshake) LocalCredentials() (ufrag, pwd string, err error) {
	ufrag, pwd, err = h.agent.GetLocalUserCredentials()
	if err != nil {
		return "", "", errors.Wrap(err, "transferengine: reading local ice credentials")
	}
	return ufrag, pwd, nil
}

// GatherCandidates starts candidate gathering and invokes onCandidate for
// each local candidate as it becomes available, until gathering completes.
func (h *Handshake) GatherCandidates(ctx context.Context, onCandidate func(candidate string)) error {
	gatherDone := make(chan struct{})
	if err := h.agent.OnCandidate(func(c ice.Candidate) {
		if c == nil {
			close(gatherDone)
			return
		}
		onCandidate(c.Marshal())
	}); err != nil {
		return errors.Wrap(err, "transferengine: registering candidate callback")
	}
	if err := h.agent.GatherCandidates(); err != nil {
		return errors.Wrap(err, "transferengine: starting candidate gathering")
	}
	select {
	case <-gatherDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddRemoteCandidate ingests one candidate string received from the peer
// over the control plane.
func (h *Handshake) AddRemoteCandidate(marshaled string) error {
	c, err := ice.UnmarshalCandidate(marshaled)
	if err != nil {
		return errors.Wrap(err, "transferengine: unmarshaling remote candidate")
	}
	return h.agent.AddRemoteCandidate(c)
}

// DialControlling runs connectivity checks as the controlling agent and
// returns the resulting connection wrapped as a net.PacketConn for QUIC.
func (h *Handshake) DialControlling(ctx context.Context, remoteUfrag, remotePwd string) (net.PacketConn, error) {
	conn, err := h.agent.Dial(ctx, remoteUfrag, remotePwd)
	if err != nil {
		return nil, errors.Wrap(err, "transferengine: ice dial (controlling)")
	}
	return &iceCandidatePacketConn{Conn: conn}, nil
}

// AcceptControlled runs connectivity checks as the controlled agent.
func (h *Handshake) AcceptControlled(ctx context.Context, remoteUfrag, remotePwd string) (net.PacketConn, error) {
	conn, err := h.agent.Accept(ctx, remoteUfrag, remotePwd)
	if err != nil {
		return nil, errors.Wrap(err, "transferengine: ice accept (controlled)")
	}
	return &iceCandidatePacketConn{Conn: conn}, nil
}

// Close releases the agent's sockets.
func (h *Handshake) Close() error {
	return h.agent.Close()
}

// iceCandidatePacketConn adapts the single-peer net.Conn a completed ICE
// handshake produces into the net.PacketConn shape quic.Dial/quic.Listen
// expect, since by the time ICE finishes there is exactly one remote
// address in play.
type iceCandidatePacketConn struct {
	net.Conn
	mu sync.Mutex
}

func (c *iceCandidatePacketConn) ReadFrom(p []byte) (n int, addr net.Addr, err error) {
	n, err = c.Conn.Read(p)
	return n, c.Conn.RemoteAddr(), err
}

func (c *iceCandidatePacketConn) WriteTo(p []byte, _ net.Addr) (n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.Write(p)
}

func (c *iceCandidatePacketConn) SetDeadline(t time.Time) error {
	return c.Conn.SetDeadline(t)
}
