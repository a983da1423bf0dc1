// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/validation-engine/internal/pipeline"
	"github.com/pdiddy/validation-engine/internal/session"
)

// phaseCommand describes one CLI command that maps to a pipeline action.
type phaseCommand struct {
	use   string
	short string
	long  string
	kind  pipeline.ActionKind
	// flag names the required value flag, if the action takes a value.
	flag string
	// usage is the flag's help text.
	usage string
}

var phaseCommands = []phaseCommand{
	{
		use:   "analyze",
		short: "Generate level-1 categories for a core market",
		long: `Analyze takes a broad core market (e.g. "Wealth") and asks the
generation backend for 5 distinct categories within it.`,
		kind:  pipeline.ActionAnalyze,
		flag:  "market",
		usage: "core market to analyze (required)",
	},
	{
		use:   "explore",
		short: "Pick a category and generate its sub-niches",
		kind:  pipeline.ActionExplore,
		flag:  "category",
		usage: "one of the listed categories (required)",
	},
	{
		use:   "lock",
		short: "Lock one sub-niche for all downstream analysis",
		kind:  pipeline.ActionLock,
		flag:  "niche",
		usage: "one of the listed sub-niches (required)",
	},
	{
		use:   "back",
		short: "Return to the previous selection level",
		kind:  pipeline.ActionBack,
	},
	{
		use:   "trends",
		short: "Fetch the popularity trend for the locked niche",
		long: `Trends fetches the niche's relative search interest. When the
service is unavailable or has no data, the session skips straight to mining.`,
		kind: pipeline.ActionCheckTrends,
	},
	{
		use:   "proceed",
		short: "Accept the trend signal and continue to mining",
		kind:  pipeline.ActionProceed,
	},
	{
		use:   "mine",
		short: "Search discussion threads for complaints about the niche",
		long: `Mine runs a site-restricted web search for complaint keywords about
the locked niche and stores the result snippets. Running it again replaces
the snippets.`,
		kind: pipeline.ActionMine,
	},
	{
		use:   "build",
		short: "Synthesize pain points, an opportunity, a moat and a landing prompt",
		long: `Build runs the remaining stages in order: pain-point and opportunity
synthesis, competitor research and moat analysis, then the landing-page
prompt. Completed stages are kept when a later stage fails; running build
again resumes from the first unfinished stage.`,
		kind: pipeline.ActionBuild,
	},
	{
		use:   "start-over",
		short: "Discard a completed analysis and start from a new market",
		kind:  pipeline.ActionStartOver,
	},
	{
		use:   "reset",
		short: "Reset the session to an empty record from any phase",
		kind:  pipeline.ActionReset,
	},
}

func (pc phaseCommand) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   pc.use,
		Short: pc.short,
		Long:  pc.long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if pc.flag != "" {
				value, _ = cmd.Flags().GetString(pc.flag)
			}
			return runAction(cmd, pc.kind, value)
		},
	}
	if pc.flag != "" {
		cmd.Flags().String(pc.flag, "", pc.usage)
		cmd.MarkFlagRequired(pc.flag)
	}
	return cmd
}

// runAction applies one action to the resolved session and prints the
// outcome. Warnings print and succeed; errors print the current state and
// fail.
func runAction(cmd *cobra.Command, kind pipeline.ActionKind, value string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := resolveSession(cmd, nil, e.cfg)
	if err != nil {
		return err
	}

	sess, aerr := e.mgr.Apply(ctx, id, pipeline.Action{Kind: kind, Value: value})
	if aerr != nil {
		if errors.Is(aerr, session.ErrNotFound) ||
			errors.Is(aerr, session.ErrSessionBusy) ||
			errors.Is(aerr, session.ErrDiscarded) {
			return aerr
		}
		notice := pipeline.Describe(aerr)
		if notice.Severity == pipeline.SeverityWarning {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", notice.Message)
			return nil
		}
		if sess.ID != "" && kind == pipeline.ActionBuild {
			printStatus(os.Stdout, sess)
		}
		return errors.New(notice.Message)
	}

	fmt.Fprintln(os.Stdout)
	printStatus(os.Stdout, sess)
	if kind == pipeline.ActionMine {
		printSnippets(os.Stdout, sess.Record.Snippets)
	}
	return nil
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE:  runSessionShow,
}

func init() {
	for _, pc := range phaseCommands {
		rootCmd.AddCommand(pc.command())
	}
	rootCmd.AddCommand(statusCmd)
}
