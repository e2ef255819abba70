package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock KIND",
	Short: "Close the running runs of a kind left behind by a crash",
	Long: `Marks every running run of KIND (sync, audit, simulate,
import_production) as failed so the next run can start. Runs older than
RUN_STALE_AFTER_MINUTES are closed automatically on the next start.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnlock,
}

func runUnlock(cmd *cobra.Command, args []string) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	n, err := runGuard(conn).Release(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d run(s) released\n", n)
	return nil
}
