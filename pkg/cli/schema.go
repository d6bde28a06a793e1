package cli

import (
	"github.com/spf13/cobra"

	"github.com/getmockd/mockapi/pkg/project"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema for project files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(project.Schema())
			return err
		},
	}
}
