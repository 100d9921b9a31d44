package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meshdrop/meshdrop/internal/transferengine"
	"github.com/meshdrop/meshdrop/pkg/manifest"
	"github.com/spf13/cobra"
)

type sendCmd struct {
	joinCode string
	group    string
}

func (c *sendCmd) registerFlags() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "offer a file for upload, waiting on the scheduler's admission queue if necessary",
	}
	cmd.Flags().StringVar(&c.joinCode, "join-code", "", "join an existing session instead of creating one")
	cmd.Flags().StringVar(&c.group, "group", "", "upload group to enqueue under (informational; group membership is server-side)")
	return cmd
}

func (c *sendCmd) run(cl *Client, cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("send requires exactly one file path")
	}
	path := args[0]
	logger := cl.logger()

	joinCode := c.joinCode
	if joinCode == "" {
		_, code, err := createSession(cl.cfg.ServerURL)
		if err != nil {
			return err
		}
		joinCode = code
		fmt.Println("join code:", joinCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := connect(ctx, cl.cfg.ServerURL, joinCode, cl.cfg.PeerID, "sender", logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.close()

	filename := baseName(path)
	manifestID := ""
	if m, err := manifest.Scan(path); err != nil {
		logger.Warn("manifest scan failed, enqueueing without a content fingerprint", "path", path, "error", err)
	} else {
		manifestID = manifest.ManifestID(m)
	}

	if err := conn.enqueueUpload(filename, manifestID); err != nil {
		return fmt.Errorf("enqueue upload: %w", err)
	}
	if err := conn.awaitStart(filename); err != nil {
		return fmt.Errorf("await start: %w", err)
	}

	fmt.Println("waiting for an admission slot...")
	waitCtx, waitCancel := context.WithTimeout(ctx, 24*time.Hour)
	defer waitCancel()
	if err := conn.waitUploadStarted(waitCtx, filename); err != nil {
		return fmt.Errorf("waiting for upload slot: %w", err)
	}
	fmt.Println("admitted, waiting for receiver to join...")

	peer, err := conn.awaitPeer(ctx)
	if err != nil {
		return fmt.Errorf("waiting for peer: %w", err)
	}

	engine := transferengine.NewQUICEngine(cl.cfg.StunServers, conn, logger)
	session, err := engine.Connect(ctx, peer.PeerID)
	if err != nil {
		_ = conn.completeUpload(filename)
		return fmt.Errorf("connect to peer: %w", err)
	}
	defer session.Close()

	if err := session.SendFile(ctx, path); err != nil {
		_ = conn.completeUpload(filename)
		return fmt.Errorf("send file: %w", err)
	}

	if err := conn.completeUpload(filename); err != nil {
		return fmt.Errorf("complete upload: %w", err)
	}

	fmt.Println("transfer complete:", filename)
	return nil
}
