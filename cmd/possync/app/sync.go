package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/possync/possync/internal/service"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass and print the result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

func newSyncCmd(use, short string, run func(service.Service, context.Context, service.SyncRequest) *service.Envelope) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			return runCommand(cmd, func(svc service.Service, ctx context.Context) *service.Envelope {
				return run(svc, ctx, service.SyncRequest{Force: force})
			})
		},
	}
	cmd.Flags().Bool("force", false, "Run even when sync is disabled in the stored configuration")
	return cmd
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print pending changes, conflicts and per-table sync state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, service.Service.GetStats)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the remote sync API is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, service.Service.CheckConnection)
	},
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List unresolved conflicts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, service.Service.GetConflicts)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <local|remote>",
	Short: "Resolve a conflict by keeping the local or the remote version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, func(svc service.Service, ctx context.Context) *service.Envelope {
			return svc.ResolveConflict(ctx, service.ResolveRequest{ConflictID: args[0], Resolution: args[1]})
		})
	},
}

var cleanLogCmd = &cobra.Command{
	Use:   "clean-log [days]",
	Short: "Delete sync log entries older than the given number of days",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := service.CleanLogRequest{}
		if len(args) == 1 {
			days, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("days must be an integer: %w", err)
			}
			req.Days = &days
		}
		return runCommand(cmd, func(svc service.Service, ctx context.Context) *service.Envelope {
			return svc.CleanLog(ctx, req)
		})
	},
}

func init() {
	syncCmd.AddCommand(newSyncCmd("full", "Pull then push every configured table", service.Service.SyncFull))
	syncCmd.AddCommand(newSyncCmd("pull", "Apply remote changes to the local tables", service.Service.SyncPull))
	syncCmd.AddCommand(newSyncCmd("push", "Send local changes to the remote API", service.Service.SyncPush))
	conflictsCmd.AddCommand(resolveCmd)
}
