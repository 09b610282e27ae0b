package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/seo-router/internal/server"
	"github.com/r9s-ai/seo-router/internal/version"
)

const defaultConfigPath = "seo-router.yaml"

// Run executes the seo-router command line with args.
func Run(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "seo-router",
		Short:         "SEO metadata injecting reverse proxy",
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		// bare `seo-router -c file` serves
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "config yaml path")
	cmd.AddCommand(
		newServeCmd(),
		newCheckCmd(),
		newMatchCmd(),
		newReloadCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "config yaml path")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return err
		},
	}
}
