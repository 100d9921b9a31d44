package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type statusCmd struct{}

func (c *statusCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "check whether a meshdropd server is reachable",
	}
}

func (c *statusCmd) run(cl *Client, cmd *cobra.Command, args []string) error {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Get(strings.TrimSuffix(cl.cfg.ServerURL, "/") + "/health")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !body.OK {
		return fmt.Errorf("server reported unhealthy (status %s)", resp.Status)
	}

	fmt.Printf("%s: ok\n", cl.cfg.ServerURL)
	return nil
}
