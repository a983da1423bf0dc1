// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/validation-engine/internal/report"
	"github.com/pdiddy/validation-engine/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the validation report of a completed session",
	Long: `Report renders the completed analysis as a document: a title naming the
niche, then the pain points, the business idea, the moat and the landing-page
prompt, in that order. The session must have finished the build phase.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("format", string(types.ReportPDF), "report format: pdf or markdown")
	reportCmd.Flags().String("out", "", "output file (default <niche>-validation.<ext>; - for stdout)")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := resolveSession(cmd, nil, e.cfg)
	if err != nil {
		return err
	}
	sess, err := e.mgr.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	f, _ := cmd.Flags().GetString("format")
	format := types.ReportFormat(f)
	data, err := report.Assemble(sess.Record, format)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if out == "" {
		out = report.Filename(sess.Record, format)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Wrote %s (%d bytes)\n", out, len(data))
	return nil
}
