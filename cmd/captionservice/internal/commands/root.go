package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captionservice",
		Short: "Caption endpoint for the image captioning site",
		Long: `captionservice answers caption requests from the image captioning site.

Captions come from a fixed catalog by default, or from Google Gemini when
the gemini provider is selected.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd(version))
	cmd.AddCommand(newCaptionsCmd())

	return cmd
}
