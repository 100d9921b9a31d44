package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type positionCmd struct {
	joinCode string
	filename string
}

func (c *positionCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position",
		Short: "report an enqueued upload's estimated position in the admission queue",
	}
	cmd.Flags().StringVar(&c.joinCode, "join-code", "", "join code of the session the upload was enqueued under")
	cmd.Flags().StringVar(&c.filename, "file", "", "filename to query; when empty, the server reports a peer-wide estimate instead")
	return cmd
}

func (c *positionCmd) run(cl *Client, cmd *cobra.Command, args []string) error {
	if c.joinCode == "" {
		return fmt.Errorf("position requires --join-code")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := connect(ctx, cl.cfg.ServerURL, c.joinCode, cl.cfg.PeerID, "sender", cl.logger())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.close()

	report, err := conn.queryPosition(ctx, c.filename)
	if err != nil {
		return fmt.Errorf("query position: %w", err)
	}

	if report.SlotAvailable {
		fmt.Printf("%s: admitted\n", report.Filename)
		return nil
	}
	fmt.Printf("%s: position %d in queue\n", report.Filename, report.Position)
	return nil
}
