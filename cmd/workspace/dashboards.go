package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
)

func newDashboardsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboards",
		Short: "Manage saved dashboards",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved dashboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client.ListDashboards(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tCREATED")
			for _, d := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.ID, d.Name, d.Type, d.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return errors.Errorf("invalid dashboard id %q", args[0])
			}
			if err := a.client.DeleteDashboard(cmd.Context(), dashboards.ID(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted dashboard %d\n", id)
			return nil
		},
	})
	return cmd
}
