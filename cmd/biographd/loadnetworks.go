package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"biograph/pkg/bel"
)

func newLoadNetworksCmd(configPath *string) *cobra.Command {
	var public bool

	cmd := &cobra.Command{
		Use:   "load-networks <dir>",
		Short: "Bulk insert network documents from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := os.ReadDir(args[0])
			if err != nil {
				return fmt.Errorf("read directory: %w", err)
			}
			var loaded, skipped int
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
					continue
				}
				path := filepath.Join(args[0], entry.Name())
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				g, err := bel.Unmarshal(data)
				if err != nil {
					a.logger.Warn("skipping unparsable document", "file", entry.Name(), "err", err)
					skipped++
					continue
				}
				if g.Name == "" {
					g.Name = strings.TrimSuffix(entry.Name(), ".json")
				}
				network, _, err := a.service.InsertNetwork(cmd.Context(), g, nil, public)
				if err != nil {
					a.logger.Warn("skipping document", "file", entry.Name(), "err", err)
					skipped++
					continue
				}
				a.logger.Info("network loaded", "network", network.ID, "name", network.Name, "version", network.Version)
				loaded++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d networks, skipped %d\n", loaded, skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&public, "public", false, "mark loaded networks public")
	return cmd
}
