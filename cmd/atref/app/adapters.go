package app

import (
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/atref/atref/internal/adapters"
)

func newAdaptersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List the hosts whose links can be resolved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := adapters.NewDefaultRegistry()
			hosts := registry.Hosts()
			sort.Strings(hosts)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Host", "Adapter")
			for _, host := range hosts {
				name, _ := registry.Adapter(host)
				if err := table.Append(host, name); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}
