package transferengine

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"log/slog"
	"math/big"
	"net"
	"time"

	"github.com/meshdrop/meshdrop/internal/transport"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

// alpnProtocol identifies this service's QUIC application protocol during
// TLS negotiation.
const alpnProtocol = "meshdrop-quic-v1"

func serverTLSConfig() (*tls.Config, error) {
	cert, err := generateSelfSignedCert()
	if err != nil {
		return nil, errors.Wrap(err, "transferengine: generating self-signed certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpnProtocol},
	}, nil
}

func clientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{alpnProtocol},
	}
}

// defaultConnWindow, defaultStreamWindow, and defaultMaxStreams feed
// transport.BuildQuicConfig, which clamps and records what it actually
// applied; a single file transfer only ever opens one stream, and the
// stream window is a quarter of the connection window.
const (
	defaultConnWindow   = 64 * 1024 * 1024
	defaultStreamWindow = 16 * 1024 * 1024
	defaultMaxStreams   = 100
)

func defaultServerQUICConfig() *quic.Config {
	base := &quic.Config{KeepAlivePeriod: 10 * time.Second, MaxIdleTimeout: 30 * time.Second, DisablePathMTUDiscovery: true}
	cfg, _ := transport.BuildQuicConfig(base, defaultConnWindow, defaultStreamWindow, defaultMaxStreams)
	return cfg
}

func defaultClientQUICConfig() *quic.Config {
	base := &quic.Config{KeepAlivePeriod: 10 * time.Second, MaxIdleTimeout: 30 * time.Second, DisablePathMTUDiscovery: true}
	cfg, _ := transport.BuildQuicConfig(base, defaultConnWindow, defaultStreamWindow, 1)
	return cfg
}

func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"meshdrop"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{certDER}, PrivateKey: priv}, nil
}

// tuneUDPSocket opportunistically widens the OS socket buffers behind pc so
// a single QUIC stream isn't throttled by the platform default. ICE hands
// back an agent-owned connection, not a raw *net.UDPConn, so this is a
// best-effort attempt: it only applies when the concrete type underneath
// happens to be one, and otherwise reports transport.StatusNA.
func tuneUDPSocket(pc net.PacketConn, logger *slog.Logger) {
	udpConn, _ := pc.(*net.UDPConn)
	result := transport.ApplyUDPBeyondBestEffort(udpConn, defaultConnWindow, defaultConnWindow)
	if result.Status != transport.StatusOK {
		logger.Debug("udp socket tuning skipped", "status", result.Status, "detail", result.Err)
		return
	}
	logger.Debug("udp socket tuned", "read_buf", result.AppliedR, "write_buf", result.AppliedW)
}

// listenQUIC opens a QUIC listener on an already-bound UDP socket, typically
// one whose NAT mapping ICE has just discovered.
func listenQUIC(udpConn net.PacketConn, logger *slog.Logger) (*quic.Listener, error) {
	tuneUDPSocket(udpConn, logger)
	tlsConfig, err := serverTLSConfig()
	if err != nil {
		return nil, err
	}
	listener, err := quic.Listen(udpConn, tlsConfig, defaultServerQUICConfig())
	if err != nil {
		logger.Error("quic listen failed", "error", err, "local_addr", udpConn.LocalAddr())
		return nil, errors.Wrap(err, "transferengine: quic listen")
	}
	logger.Info("quic listener ready", "local_addr", udpConn.LocalAddr())
	return listener, nil
}

// dialQUIC opens a QUIC connection to remoteAddr over an already-bound UDP
// socket, typically the far side of an ICE candidate pair.
func dialQUIC(ctx context.Context, udpConn net.PacketConn, remoteAddr net.Addr, logger *slog.Logger) (quic.Connection, error) {
	tuneUDPSocket(udpConn, logger)
	conn, err := quic.Dial(ctx, udpConn, remoteAddr, clientTLSConfig(), defaultClientQUICConfig())
	if err != nil {
		logger.Error("quic dial failed", "error", err, "remote_addr", remoteAddr)
		return nil, errors.Wrap(err, "transferengine: quic dial")
	}
	logger.Info("quic connection established", "remote_addr", remoteAddr)
	return conn, nil
}
