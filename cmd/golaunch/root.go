package main

import (
	"fmt"
	"io"
	"log/slog"

	"golaunch/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root golaunch command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "golaunch",
		Short:         "golaunch agent session tools",
		Long:          "golaunch manages the launcher's agent configuration, stored conversations and\nuser memory, and replays scripted agent sessions through the session engine.",
		Version:       fmt.Sprintf("golaunch %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "log engine activity to stderr")

	cmd.AddCommand(
		newConversationsCmd(),
		newMemoryCmd(),
		newAgentCmd(),
		newReplayCmd(),
	)

	return cmd
}

// newLogger returns the structured logger for cmd: a text handler on
// stderr at Warn, or Debug with --verbose.
func newLogger(cmd *cobra.Command) *slog.Logger {
	return newLoggerTo(cmd.ErrOrStderr(), verbose(cmd))
}

func newLoggerTo(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func verbose(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("verbose")
	return err == nil && v
}
