// File: cmd/list.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rehydrate/internal/suite"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the scenarios a run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scenarios, err := suite.Select(suite.All(), a.cfg.SuiteCfg.Filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, sc := range scenarios {
				driver := sc.Driver
				if driver == suite.DriverAny {
					driver = "any"
				}
				fmt.Fprintf(out, "[%s] %s\n", driver, sc.FullName())
			}
			fmt.Fprintf(out, "%d scenarios\n", len(scenarios))
			return nil
		},
	}
	cmd.Flags().String("filter", "", "only scenarios whose name matches this regexp (case insensitive)")
	bindFlag(cmd.Flags(), "filter", "suite.filter")
	return cmd
}
