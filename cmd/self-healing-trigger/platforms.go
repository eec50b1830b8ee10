package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/supporttools/self-healing-trigger/pkg/logger"
	"github.com/supporttools/self-healing-trigger/pkg/remediators"
	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// platformInfo is the JSON shape printed by the platforms command.
type platformInfo struct {
	Platform string       `json:"platform"`
	Actions  []actionInfo `json:"actions"`
}

type actionInfo struct {
	Label         string               `json:"label"`
	Category      types.ActionCategory `json:"category"`
	RequiredTool  string               `json:"requiredTool,omitempty"`
	ToolAvailable bool                 `json:"toolAvailable"`
	Command       string               `json:"command"`
	Selected      bool                 `json:"selected"`
}

func (c *cli) newPlatformsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "platforms",
		Short: "List registered platforms and their remedial actions",
		Long: `Platforms prints every registered platform handler with its actions grouped
by category, whether the tool each action needs is installed on this host
and whether the action is part of the current category selection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			config, err := c.loadConfiguration()
			if err != nil {
				return err
			}
			registry, err := remediators.BuildRegistry(config.Remediation.Platforms, logger.ForComponent("registry"))
			if err != nil {
				return err
			}
			selection, err := config.Remediation.Selection()
			if err != nil {
				return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
			}

			infos := describePlatforms(registry, remediators.NewPathProbe(), selection)
			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			return printPlatforms(cmd.OutOrStdout(), infos)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json)")
	return cmd
}

// describePlatforms lists platforms sorted by identifier and actions in
// category presentation order.
func describePlatforms(registry *remediators.Registry, probe types.ToolProbe, selection types.ActionSelection) []platformInfo {
	infos := make([]platformInfo, 0)
	for _, platform := range registry.Platforms() {
		handler := registry.Lookup(platform)
		info := platformInfo{Platform: platform, Actions: make([]actionInfo, 0, len(handler.Actions))}
		for _, group := range handler.Taxonomy() {
			for _, action := range group.Actions {
				info.Actions = append(info.Actions, actionInfo{
					Label:         action.Label,
					Category:      action.Category,
					RequiredTool:  action.RequiredTool,
					ToolAvailable: action.RequiredTool == "" || probe.Available(action.RequiredTool),
					Command:       action.CommandLine(),
					Selected:      selection.Includes(action.Category),
				})
			}
		}
		infos = append(infos, info)
	}
	return infos
}

func printPlatforms(w io.Writer, infos []platformInfo) error {
	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, titleStyle.Render(info.Platform))
		if len(info.Actions) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("  no actions"))
			continue
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  CATEGORY\tACTION\tTOOL\tSELECTED\tCOMMAND")
		for _, a := range info.Actions {
			tool := "-"
			if a.RequiredTool != "" {
				tool = a.RequiredTool
				if !a.ToolAvailable {
					tool += " (missing)"
				}
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", a.Category, a.Label, tool, yesNo(a.Selected), a.Command)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
