package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [command line]",
	Short: "Score the packages an install command references and decide whether it may run",
	Long: `Score the packages an install command references and decide whether it may run.

The command line is analyzed but never executed. Exit code 0 means the
command may proceed, exit code 3 means it was blocked or denied.

Example:
  depsentry check "pip install requests numpy"
  depsentry check --mode block "npm install reqeusts"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		interceptor, err := GetInterceptor(ctx)
		if err != nil {
			return err
		}

		commandLine := strings.Join(args, " ")
		report, allowed, err := interceptor.Intercept(ctx, commandLine)
		if err != nil {
			return fmt.Errorf("failed to check command %q: %w", commandLine, err)
		}

		formatReport(ctx, report)

		if !allowed {
			os.Exit(exitCodeBlocked)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&token, "token", "t", "", "GitHub access token for repository signals (env: GH_TOKEN)")
}
