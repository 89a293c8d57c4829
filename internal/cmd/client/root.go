package client

import (
	"github.com/spf13/cobra"
)

// AddCommands registers the message client commands on root.
func AddCommands(root *cobra.Command, baseURL BaseURLFunc) {
	root.AddCommand(
		newReportCommand(baseURL),
		newLatestCommand(baseURL),
		newGetCommand(baseURL),
		newProtectCommand(baseURL),
		newUnprotectCommand(baseURL),
		newCountCommand(baseURL),
		newClearCommand(baseURL),
		newHealthCommand(baseURL),
	)
}

// NewRoot constructs a root Cobra command holding only the client commands.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "logwindow",
		Short: "logwindow client commands",
	}
	AddCommands(root, baseURL)
	return root
}
