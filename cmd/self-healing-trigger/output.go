package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7A80"))
	succeededStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC71"))
	simulatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1C40F"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
)

func validateOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("invalid output format %q: must be %s or %s", format, outputTable, outputJSON)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSummary renders a pass summary in the requested format.
func printSummary(w io.Writer, summary *types.PassSummary, format string) error {
	if format == outputJSON {
		return writeJSON(w, summary)
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Remediation pass %s", summary.PassID)))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("thresholds: errors > %d, warnings > %d  duration: %v",
		summary.Thresholds.ErrorThreshold, summary.Thresholds.WarningThreshold,
		summary.Duration().Round(time.Millisecond))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYSTEM\tPLATFORM\tERRORS\tWARNINGS\tSTATE\tREASON\tSUCCEEDED\tSIMULATED\tFAILED")
	for _, r := range summary.Results {
		platform, errs, warns := "-", "-", "-"
		if r.Stats != nil {
			platform = r.Stats.PlatformID()
			errs = fmt.Sprint(r.Stats.ErrorCount)
			warns = fmt.Sprint(r.Stats.WarningCount)
		}
		reason := string(r.Reason)
		if r.Skipped {
			reason = r.SkipReason
		}
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.SystemID, platform, errs, warns, r.State, reason,
			r.Report.Count(types.StatusSucceeded),
			r.Report.Count(types.StatusSimulated),
			r.Report.Count(types.StatusFailed))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if hasOutcomes(summary) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Actions"))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYSTEM\tACTION\tCATEGORY\tSTATUS\tDETAIL")
		for _, r := range summary.Results {
			if r.Report == nil {
				continue
			}
			for _, o := range r.Report.Outcomes {
				// status is the last styled cell so escape codes do not skew the columns before it
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.SystemID, o.ActionLabel, o.Category, o.Status, statusStyle(o.Status).Render(firstLine(o.Detail)))
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	c := summary.Counts
	fmt.Fprintln(w)
	fmt.Fprintf(w, "systems=%d triggered=%d notTriggered=%d skipped=%d  %s %s %s\n",
		c.Systems, c.Triggered, c.NotTriggered, c.Skipped,
		succeededStyle.Render(fmt.Sprintf("succeeded=%d", c.Succeeded)),
		simulatedStyle.Render(fmt.Sprintf("simulated=%d", c.Simulated)),
		failedStyle.Render(fmt.Sprintf("failed=%d", c.Failed)))
	return nil
}

func hasOutcomes(summary *types.PassSummary) bool {
	for _, r := range summary.Results {
		if r.Report != nil && len(r.Report.Outcomes) > 0 {
			return true
		}
	}
	return false
}

func statusStyle(status types.ActionStatus) lipgloss.Style {
	switch status {
	case types.StatusSucceeded:
		return succeededStyle
	case types.StatusFailed:
		return failedStyle
	default:
		return simulatedStyle
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "-"
	}
	return s
}
