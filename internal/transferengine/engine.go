// Package transferengine is the wire-level collaborator that owns sockets
// and moves file bytes once the scheduler has admitted an upload. It never
// makes an admission decision; every call into a Session is bracketed by
// scheduler.Enqueue/AwaitStart/Complete at the call site in cmd/meshdrop.
package transferengine

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/meshdrop/meshdrop/internal/bufpool"
	"github.com/meshdrop/meshdrop/internal/transport"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

// copyBufPool sizes copy buffers to fit comfortably under a QUIC stream's
// flow-control window without over-fragmenting small files.
var copyBufPool = bufpool.New(64 * 1024)

// Engine opens sessions to remote peers. Connect performs whatever NAT
// traversal and transport handshake the concrete implementation needs.
type Engine interface {
	Connect(ctx context.Context, peerID string) (Session, error)
}

// Session sends files to one already-connected peer.
type Session interface {
	SendFile(ctx context.Context, path string) error
	Close() error
}

// Signaler exchanges ICE credentials and candidates with a specific remote
// peer over whatever out-of-band channel the caller has open (the
// control-plane websocket, in cmd/meshdropd/cmd/meshdrop). QUICEngine calls
// it during Connect; it never touches file bytes.
type Signaler interface {
	ExchangeCredentials(ctx context.Context, peerID, localUfrag, localPwd string) (remoteUfrag, remotePwd string, err error)
	ExchangeCandidates(ctx context.Context, peerID string, local []string) (remote []string, err error)
}

// QUICEngine implements Engine over pion/ice/v2 for NAT traversal and
// quic-go for the actual byte transport, split across ice.go and quic.go
// but trimmed to the single send-a-file operation this service's CLI needs.
type QUICEngine struct {
	stunURLs []string
	signaler Signaler
	logger   *slog.Logger
}

// NewQUICEngine builds a QUICEngine that resolves NAT traversal using
// stunURLs and coordinates ICE credential/candidate exchange through
// signaler.
func NewQUICEngine(stunURLs []string, signaler Signaler, logger *slog.Logger) *QUICEngine {
	return &QUICEngine{stunURLs: stunURLs, signaler: signaler, logger: logger}
}

// Connect performs an ICE handshake with peerID (as the controlling agent)
// and opens a QUIC connection over the resulting candidate pair.
func (e *QUICEngine) Connect(ctx context.Context, peerID string) (Session, error) {
	hs, err := NewHandshake(e.stunURLs, e.logger)
	if err != nil {
		return nil, err
	}

	localUfrag, localPwd, err := hs.LocalCredentials()
	if err != nil {
		hs.Close()
		return nil, err
	}
	remoteUfrag, remotePwd, err := e.signaler.ExchangeCredentials(ctx, peerID, localUfrag, localPwd)
	if err != nil {
		hs.Close()
		return nil, errors.Wrap(err, "transferengine: exchanging ice credentials")
	}

	var local []string
	if err := hs.GatherCandidates(ctx, func(c string) { local = append(local, c) }); err != nil {
		hs.Close()
		return nil, err
	}
	remote, err := e.signaler.ExchangeCandidates(ctx, peerID, local)
	if err != nil {
		hs.Close()
		return nil, errors.Wrap(err, "transferengine: exchanging ice candidates")
	}
	for _, c := range remote {
		if err := hs.AddRemoteCandidate(c); err != nil {
			hs.Close()
			return nil, err
		}
	}

	packetConn, err := hs.DialControlling(ctx, remoteUfrag, remotePwd)
	if err != nil {
		hs.Close()
		return nil, err
	}

	conn, err := dialQUIC(ctx, packetConn, packetConnRemoteAddr(packetConn), e.logger)
	if err != nil {
		hs.Close()
		return nil, err
	}

	return &quicSession{conn: conn, handshake: hs, logger: e.logger}, nil
}

func packetConnRemoteAddr(pc net.PacketConn) net.Addr {
	if c, ok := pc.(*iceCandidatePacketConn); ok {
		return c.Conn.RemoteAddr()
	}
	return nil
}

// quicSession sends files over a single QUIC connection, one stream per
// file, framed with a small length-prefixed header carrying the file name.
type quicSession struct {
	conn      quic.Connection
	handshake *Handshake
	logger    *slog.Logger
}

// SendFile opens a new bidirectional stream, writes a header naming the
// file, then streams its contents and closes the write side.
func (s *quicSession) SendFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "transferengine: opening %s", path)
	}
	defer f.Close()

	stream, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		return errors.Wrap(err, "transferengine: opening quic stream")
	}
	defer stream.Close()

	if err := writeHeader(stream, filepath.Base(path)); err != nil {
		return err
	}

	buf := copyBufPool.Get()
	defer copyBufPool.Put(buf)
	n, err := io.CopyBuffer(stream, f, buf)
	if err != nil {
		return errors.Wrapf(err, "transferengine: sending %s", path)
	}
	s.logger.Info("file sent", "path", path, "size", transport.FormatBytesGiB(n))
	return stream.Close()
}

// Close tears down the QUIC connection and the ICE agent behind it.
func (s *quicSession) Close() error {
	err := s.conn.CloseWithError(0, "")
	if hsErr := s.handshake.Close(); hsErr != nil && err == nil {
		err = hsErr
	}
	return err
}

// ReceiveFile blocks until the peer opens a stream, reads the header, and
// writes the file body into destDir. It is the passive counterpart callers
// on the receiving end of a Connect use once a QUICEngine has accepted an
// inbound session (see AcceptSession).
func ReceiveFile(ctx context.Context, conn quic.Connection, destDir string) (string, error) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return "", errors.Wrap(err, "transferengine: accepting quic stream")
	}
	defer stream.Close()

	name, err := readHeader(stream)
	if err != nil {
		return "", err
	}

	destPath := filepath.Join(destDir, filepath.Base(name))
	out, err := os.Create(destPath)
	if err != nil {
		return "", errors.Wrapf(err, "transferengine: creating %s", destPath)
	}
	defer out.Close()

	buf := copyBufPool.Get()
	defer copyBufPool.Put(buf)
	if _, err := io.CopyBuffer(out, stream, buf); err != nil {
		return "", errors.Wrapf(err, "transferengine: receiving %s", destPath)
	}
	return destPath, nil
}

// AcceptSession runs the ICE handshake as the controlled agent and opens
// the corresponding QUIC listener, returning once one connection has been
// accepted. It is the receiving side's counterpart to QUICEngine.Connect.
func AcceptSession(ctx context.Context, stunURLs []string, signaler Signaler, peerID string, logger *slog.Logger) (quic.Connection, func() error, error) {
	hs, err := NewHandshake(stunURLs, logger)
	if err != nil {
		return nil, nil, err
	}

	localUfrag, localPwd, err := hs.LocalCredentials()
	if err != nil {
		hs.Close()
		return nil, nil, err
	}
	remoteUfrag, remotePwd, err := signaler.ExchangeCredentials(ctx, peerID, localUfrag, localPwd)
	if err != nil {
		hs.Close()
		return nil, nil, errors.Wrap(err, "transferengine: exchanging ice credentials")
	}

	var local []string
	if err := hs.GatherCandidates(ctx, func(c string) { local = append(local, c) }); err != nil {
		hs.Close()
		return nil, nil, err
	}
	remote, err := signaler.ExchangeCandidates(ctx, peerID, local)
	if err != nil {
		hs.Close()
		return nil, nil, errors.Wrap(err, "transferengine: exchanging ice candidates")
	}
	for _, c := range remote {
		if err := hs.AddRemoteCandidate(c); err != nil {
			hs.Close()
			return nil, nil, err
		}
	}

	packetConn, err := hs.AcceptControlled(ctx, remoteUfrag, remotePwd)
	if err != nil {
		hs.Close()
		return nil, nil, err
	}

	listener, err := listenQUIC(packetConn, logger)
	if err != nil {
		hs.Close()
		return nil, nil, err
	}
	conn, err := listener.Accept(ctx)
	if err != nil {
		hs.Close()
		return nil, nil, errors.Wrap(err, "transferengine: accepting quic connection")
	}

	cleanup := func() error {
		err := listener.Close()
		if hsErr := hs.Close(); hsErr != nil && err == nil {
			err = hsErr
		}
		return err
	}
	return conn, cleanup, nil
}
