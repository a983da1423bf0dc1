// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/validation-engine/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create, inspect, export and delete research sessions",
	Long: `Session manages persisted research sessions. Each session holds one
research record. "session new" creates a session and makes it current; the
phase commands act on the current session unless --session names another.`,
}

// --- new subcommand ---

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session and make it current",
	Args:  cobra.NoArgs,
	RunE:  runSessionNew,
}

func runSessionNew(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.mgr.Create(cmd.Context())
	if err != nil {
		return err
	}
	if err := writeCurrent(e.cfg, sess.ID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Created session %s\n", sess.ID)
	return nil
}

// --- list subcommand ---

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

func runSessionList(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer e.Close()

	list, err := e.mgr.List(cmd.Context())
	if err != nil {
		return err
	}
	current, _ := readCurrent(e.cfg)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "  %-36s  %-17s  %-30s  %s\n", "ID", "Phase", "Subject", "Updated")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, s := range list {
		mark := " "
		if s.ID == current {
			mark = "*"
		}
		subject := s.Record.Niche()
		if subject == "" {
			subject = s.Record.CoreMarket
		}
		fmt.Fprintf(os.Stdout, "%s %-36s  %-17s  %-30s  %s\n",
			mark, s.ID, s.Record.Phase, truncate(subject, 30), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(os.Stdout, "\n%d sessions\n", len(list))
	return nil
}

// --- show subcommand ---

var sessionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a session's phase, candidates and outputs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionShow,
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := resolveSession(cmd, args, e.cfg)
	if err != nil {
		return err
	}
	sess, err := e.mgr.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	printStatus(os.Stdout, sess)
	return nil
}

// --- use subcommand ---

var sessionUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make an existing session current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd.Context(), io.Discard)
		if err != nil {
			return err
		}
		defer e.Close()

		if _, err := e.mgr.Get(cmd.Context(), args[0]); err != nil {
			return err
		}
		return writeCurrent(e.cfg, args[0])
	},
}

// --- history subcommand ---

var sessionHistoryCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List the actions run against a session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionHistory,
}

func runSessionHistory(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := resolveSession(cmd, args, e.cfg)
	if err != nil {
		return err
	}
	hist, err := e.mgr.History(cmd.Context(), id)
	if err != nil {
		return err
	}
	if len(hist) == 0 {
		fmt.Println("No actions recorded.")
		return nil
	}
	for _, t := range hist {
		line := fmt.Sprintf("%s  %-12s %-17s -> %-17s %s",
			t.At.Local().Format("2006-01-02 15:04:05"), t.Action, t.From, t.To, t.Outcome)
		if t.Value != "" {
			line += fmt.Sprintf("  %q", t.Value)
		}
		if t.Error != "" {
			line += "  (" + t.Error + ")"
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}

// --- export subcommand ---

var sessionExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a session record and its history to YAML or JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionExport,
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := resolveSession(cmd, args, e.cfg)
	if err != nil {
		return err
	}
	exp, err := e.mgr.Export(cmd.Context(), id)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	if out == "" || out == "-" {
		return session.WriteExport(os.Stdout, exp, session.ExportFormat(format))
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	if err := session.WriteExport(f, exp, session.ExportFormat(format)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
	return nil
}

// --- delete subcommand ---

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a session and its history",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionDelete,
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := resolveSession(cmd, args, e.cfg)
	if err != nil {
		return err
	}
	if err := e.mgr.Delete(cmd.Context(), id); err != nil {
		return err
	}
	if current, _ := readCurrent(e.cfg); current == id {
		if err := clearCurrent(e.cfg); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stdout, "Deleted session %s\n", id)
	return nil
}

func init() {
	sessionListCmd.Flags().Bool("json", false, "output sessions as JSON")
	sessionExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	sessionExportCmd.Flags().String("out", "", "output file (default stdout)")

	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionShowCmd, sessionUseCmd,
		sessionHistoryCmd, sessionExportCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}
