package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lexcodex/optima/framework"
	"github.com/lexcodex/optima/workspace"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage the problem directory and its archive",
	}
	cmd.AddCommand(newWorkspacePrepareCmd())
	return cmd
}

func newWorkspacePrepareCmd() *cobra.Command {
	var noArchive bool
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Archive the previous run and clear the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := framework.NewProgress(cmd.OutOrStdout())
			archived, err := newWorkspace().Prepare(!noArchive)
			if err != nil {
				return err
			}
			if archived != "" {
				out.OK("Archived -> %s", archived)
			} else {
				out.Info("Nothing to archive")
			}
			out.OK("Cleared %s", dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "Clear without archiving")
	return cmd
}

func newWorkspace() *workspace.Workspace {
	cfg := currentConfig()
	ws := workspace.New(dir)
	ws.HistoryDir = pick(cfg.Workspace.HistoryDir, workspace.DefaultHistoryDir)
	ws.MaxArchives = cfg.Workspace.MaxArchives
	ws.Logger = logger
	return ws
}
