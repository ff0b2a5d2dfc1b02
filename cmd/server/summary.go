package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/warp/workfacts/facts"
)

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary <user_id>",
		Short: "Print a user's fact summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, flags, func(d *deps) error {
				sum, err := d.facts.Summary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printSummary(cmd.OutOrStdout(), args[0], sum, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func printSummary(w io.Writer, userID string, s facts.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "User:            %s\n", userID)
	fmt.Fprintf(w, "Leave days:      %v\n", s.LeaveDays)
	fmt.Fprintf(w, "Overtime hours:  %v\n", s.OvertimeHours)
	fmt.Fprintf(w, "Next bonus date: %s\n", s.NextBonusDate)
	fmt.Fprintf(w, "Salary:          %v\n", s.Salary)
	fmt.Fprintf(w, "Meal allowance:  %v\n", s.MealAllowance)
	fmt.Fprintf(w, "Last updated:    %s\n", s.LastUpdated)
	return nil
}
