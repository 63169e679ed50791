package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golaunch/pkg/agentconfig"
	"golaunch/pkg/permission"
	"golaunch/pkg/prompt"
	"golaunch/pkg/protocol"
	"golaunch/pkg/script"
	"golaunch/pkg/session"
	"golaunch/pkg/store"

	"github.com/spf13/cobra"
)

const defaultTurnTimeout = 30 * time.Second

type replayOptions struct {
	approve bool
	watch   bool
	timeout time.Duration
}

// newReplayCmd creates the "golaunch replay" command.
func newReplayCmd() *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay <script>",
		Short: "Play a scripted agent session through the session engine",
		Long: `Replay runs every turn of a YAML transcript through the session engine,
storing the conversation like a live session would. Permission requests the
policy does not allow are answered with the first deny option, or with an
allow option when --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			log := newLogger(cmd)
			if !opts.watch {
				return runReplay(cmd.Context(), cmd.OutOrStdout(), path, opts, log)
			}

			changes, err := agentconfig.Watch(cmd.Context(), path, log)
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			for {
				if err := runReplay(cmd.Context(), cmd.OutOrStdout(), path, opts, log); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "replay: %v\n", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes...\n", path)
				select {
				case <-cmd.Context().Done():
					return nil
				case _, ok := <-changes:
					if !ok {
						return nil
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&opts.approve, "yes", "y", false, "approve every permission request")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "replay again whenever the script changes")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultTurnTimeout, "maximum duration of one turn")
	return cmd
}

func runReplay(ctx context.Context, out io.Writer, path string, opts replayOptions, log *slog.Logger) error {
	s, err := script.Load(path)
	if err != nil {
		return err
	}

	st, paths, closeDB, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	tr := script.New(s, log)
	defer func() { _ = tr.Close() }()

	changed := make(chan struct{}, 1)
	eng := session.New(tr, st, session.Options{
		Logger:   log,
		Composer: &prompt.Composer{Source: st, Memories: st, CLIPath: protocol.CLIName, DBPath: paths.DBPath, Logger: log},
		Policy:   permission.Policy{},
		OnChange: func(session.Snapshot) {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- eng.Run(runCtx) }()
	// Stopping the engine flushes pending writes before the database closes.
	defer func() {
		stop()
		<-done
	}()

	progress := newStartupLog(out, isTerminal(out))
	if err := attach(ctx, progress, eng, st, s.Agent); err != nil {
		return err
	}

	for i, turn := range s.Turns {
		id, err := eng.Prompt(ctx, turn.Prompt, turn.Items)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		if id == 0 {
			return fmt.Errorf("turn %d: prompt %q not accepted", i+1, turn.Prompt)
		}
		progress.Step("Turn %d: %s", i+1, prompt.Truncate(turn.Prompt, 60))

		turnCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		err = awaitTurn(turnCtx, out, eng, id, changed, opts.approve)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			_ = eng.Cancel(ctx)
			progress.Fail(fmt.Sprintf("Turn %d", i+1), fmt.Errorf("no reply within %s", opts.timeout))
			continue
		}
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
	}

	snap := eng.Snapshot()
	fmt.Fprintln(out)
	newThreadStyles(out).writeThread(out, snap.Thread)
	if snap.ConversationID != "" {
		fmt.Fprintf(out, "\nConversation %s\n", snap.ConversationID)
	}
	return nil
}

// attach reattaches to the saved agent and falls back to the script's own
// configuration when nothing is saved.
func attach(ctx context.Context, progress *startupLog, eng *session.Engine, st *store.Store, fallback protocol.AgentConfig) error {
	finish := progress.StartSpinner("Attaching to agent")
	err := eng.Attach(ctx, agentconfig.New(st))
	if err == nil && !eng.Status().Live() {
		err = eng.Connect(ctx, fallback)
	}
	finish(err)
	if err != nil {
		return err
	}

	snap := eng.Snapshot()
	if snap.Config.AgentID != "" {
		progress.Step("Agent %s %s", snap.Config.AgentID, snap.Status)
	}
	return nil
}

// awaitTurn blocks until turn id ends, answering the permission requests
// the engine leaves to the user.
func awaitTurn(ctx context.Context, out io.Writer, eng *session.Engine, id uint64, changed <-chan struct{}, approve bool) error {
	answered := make(map[string]bool)
	for {
		snap := eng.Snapshot()
		if snap.Turn.ID != id || !snap.Turn.Active {
			return nil
		}

		if p := snap.Permission; p != nil && !answered[p.RequestID] {
			answered[p.RequestID] = true
			optionID, ok := chooseOption(p.Options, approve)
			if !ok {
				return fmt.Errorf("permission %s has no options", p.RequestID)
			}
			opt, _ := p.Option(optionID)
			fmt.Fprintf(out, "  ? %s %s -> %s\n", p.ToolName, describePermission(*p), opt.Name)
			if err := eng.ResolvePermission(ctx, p.RequestID, optionID); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// chooseOption picks an allow option when approve is set, and otherwise
// the first option that does not allow.
func chooseOption(options []protocol.PermissionOption, approve bool) (string, bool) {
	if approve {
		if id, ok := permission.PickAllowOption(options); ok {
			return id, true
		}
	} else {
		for _, o := range options {
			if !permission.IsAllowKind(o.Kind) {
				return o.OptionID, true
			}
		}
	}
	if len(options) == 0 {
		return "", false
	}
	return options[0].OptionID, true
}

func describePermission(p protocol.PermissionRequest) string {
	switch {
	case p.CommandPreview != "":
		return prompt.Truncate(p.CommandPreview, 80)
	case p.Description != "":
		return prompt.Truncate(p.Description, 80)
	default:
		return p.RequestID
	}
}
