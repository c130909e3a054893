package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/bitfantasy/oficina/internal/shared/apiclient"
	"github.com/bitfantasy/oficina/internal/workshop/status"
	"github.com/bitfantasy/oficina/internal/workshop/worksession"
	"github.com/spf13/cobra"
)

func newAppointmentsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"ordens"},
		Short:   "Service orders",
	}

	var opts apiclient.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List service orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := c.client().ListAppointments(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tID\tSTATUS\tRAW STATUS\tWORKED")
			for _, a := range page.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.Code, a.ID, status.Normalize(a.Status), a.Status, worksession.FormatClock(a.ElapsedSeconds))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			p := page.Pagination
			fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d, %d orders\n", p.Page, p.TotalPages, p.Total)
			return nil
		},
	}
	list.Flags().StringVar(&opts.Search, "keyword", "", "search code, notes or plate")
	list.Flags().StringVar(&opts.Status, "status", "", "raw status label")
	list.Flags().IntVar(&opts.Page, "page", 1, "page number")
	list.Flags().IntVar(&opts.PageSize, "page-size", 20, "page size (max 100)")
	cmd.AddCommand(list)
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Status labels",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "normalize <raw-label>",
		Short: "Print the canonical status of a backend label",
		Args:  cobra.ExactArgs(1),
		// 纯本地计算，不需要配置
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), status.Normalize(args[0]))
			return nil
		},
	})
	return cmd
}
