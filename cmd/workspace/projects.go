package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newProjectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Inspect projects on the remote service",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects and their files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFILES\tUPDATED")
			for _, p := range list {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", p.ID, p.Name, len(p.Files), p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	})
	return cmd
}
