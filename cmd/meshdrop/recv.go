package main

import (
	"context"
	"fmt"

	"github.com/meshdrop/meshdrop/internal/transferengine"
	"github.com/spf13/cobra"
)

type recvCmd struct {
	joinCode string
}

func (c *recvCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "join a session and receive the file the sender offers",
	}
	cmd.Flags().StringVar(&c.joinCode, "join-code", "", "join code printed by the sender")
	return cmd
}

func (c *recvCmd) run(cl *Client, cmd *cobra.Command, args []string) error {
	if c.joinCode == "" {
		return fmt.Errorf("recv requires --join-code")
	}
	logger := cl.logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := connect(ctx, cl.cfg.ServerURL, c.joinCode, cl.cfg.PeerID, "receiver", logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.close()

	fmt.Println("waiting for sender...")
	peer, err := conn.awaitPeer(ctx)
	if err != nil {
		return fmt.Errorf("waiting for peer: %w", err)
	}

	quicConn, cleanup, err := transferengine.AcceptSession(ctx, cl.cfg.StunServers, conn, peer.PeerID, logger)
	if err != nil {
		return fmt.Errorf("accept session: %w", err)
	}
	defer cleanup()

	destPath, err := transferengine.ReceiveFile(ctx, quicConn, cl.cfg.OutDir)
	if err != nil {
		return fmt.Errorf("receive file: %w", err)
	}

	fmt.Println("received:", destPath)
	return nil
}
