package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/stackit/backend/internal/store"
)

func newReconcileCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check vote counters and accepted answers against the vote ledger",
		Long: "Recomputes every question's and answer's vote count and voter sets from the vote ledger " +
			"and checks accepted answers against their questions. With --fix the stored values are rewritten.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := store.New(db.GetDB()).Reconcile(cmd.Context(), fix, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "checked %d targets\n", report.Checked)
			for _, d := range report.Votes {
				fmt.Fprintf(out, "%s %d: votes %d, ledger %d\n", d.TargetType, d.TargetID, d.StoredVotes, d.LedgerVotes)
			}
			for _, d := range report.Acceptance {
				fmt.Fprintf(out, "question %d: accepted %d, flagged %v\n", d.QuestionID, d.AcceptedAnswerID, d.FlaggedAnswerIDs)
			}
			switch {
			case report.Clean():
				fmt.Fprintln(out, "no drift")
			case report.Fixed:
				fmt.Fprintln(out, "drift fixed")
			default:
				return fmt.Errorf("found %d vote and %d acceptance drifts, rerun with --fix", len(report.Votes), len(report.Acceptance))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Rewrite drifted values from the ledger")

	return cmd
}
