package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCaptionsCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "captions",
		Short: "Print the caption catalog with its indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(catalogPath)

			if err != nil {
				return err
			}

			for i := 0; i < catalog.Len(); i++ {
				result := catalog.At(i)
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", result.Index, result.Caption)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "captions", "", "YAML file with the caption catalog")
	return cmd
}
