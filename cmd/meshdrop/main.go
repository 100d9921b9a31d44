// Command meshdrop is the peer-side CLI: it creates or joins a signaling
// session on a meshdropd server, then sends or receives one file over a
// direct QUIC/ICE transport once the scheduler admits the upload.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/meshdrop/meshdrop/internal/config"
	"github.com/meshdrop/meshdrop/internal/logging"
	"github.com/spf13/cobra"
)

var defaultStunServers = []string{"stun:stun.l.google.com:19302", "stun:stun.cloudflare.com:3478"}

// Client is the shared state every subcommand's run() method receives: the
// parsed configuration and a logger. Individual subcommands open their own
// signaling connection since each has a different session lifecycle (send
// creates one, recv joins one).
type Client struct {
	rootCmd *cobra.Command
	cfg     config.ClientConfig
}

// command is implemented by each meshdrop subcommand, one per file, in the
// pattern scootapi's client package uses for its own subcommands.
type command interface {
	registerFlags() *cobra.Command
	run(cl *Client, cmd *cobra.Command, args []string) error
}

func newClient() *Client {
	c := &Client{}
	c.rootCmd = &cobra.Command{
		Use:   "meshdrop",
		Short: "meshdrop sends and receives files over a direct peer-to-peer connection",
	}
	c.addCmd(&sendCmd{})
	c.addCmd(&recvCmd{})
	c.addCmd(&statusCmd{})
	c.addCmd(&positionCmd{})
	return c
}

func (c *Client) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.Flags().StringVar(&c.cfg.ServerURL, "server-url", "http://localhost:8080", "meshdropd server URL")
	cobraCmd.Flags().StringVar(&c.cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cobraCmd.Flags().StringVar(&c.cfg.PeerID, "peer-id", config.NewPeerID(), "peer identifier")
	cobraCmd.Flags().StringVar(&c.cfg.OutDir, "out-dir", ".", "directory received files are written to")
	c.cfg.StunServers = defaultStunServers
	cobraCmd.Flags().StringArrayVar(&c.cfg.StunServers, "stun", defaultStunServers, "STUN server URL (repeatable)")
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.run(c, innerCmd, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}

func (c *Client) logger() *slog.Logger {
	return logging.New("meshdrop", c.cfg.LogLevel)
}

func main() {
	c := newClient()
	if err := c.rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
