package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDropCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop <network|query|omic|experiment> <id>",
		Short: "Cascade delete an entity and its dependents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}
			a, err := buildApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			switch args[0] {
			case "network":
				_, err = a.service.DropNetwork(ctx, id)
			case "query":
				_, err = a.service.DeleteQuery(ctx, id)
			case "omic":
				_, err = a.service.DropOmic(ctx, id)
			case "experiment":
				_, err = a.service.DropExperiment(ctx, id)
			default:
				return fmt.Errorf("unknown entity %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s %d\n", args[0], id)
			return nil
		},
	}
	return cmd
}
