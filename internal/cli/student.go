package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rollcall-labs/rollcall/internal/report"
	"github.com/rollcall-labs/rollcall/internal/session"
)

func newProfileCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the logged-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Manager.IsAuthenticated() {
				return session.ErrNotAuthenticated
			}

			out := cmd.OutOrStdout()
			if app.Manager.Role() == session.RoleTeacher {
				profile, err := app.Client.TeacherProfile(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s, %s\n", profile.User.Username, profile.Department)
				for _, subject := range profile.Subjects {
					fmt.Fprintf(out, "  %s (%s) sem %s sections %v\n", subject.Name, subject.Code, subject.Semester, subject.Sections)
				}
				return nil
			}

			profile, err := app.Client.StudentProfile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s (%s)\n", profile.FullName, profile.RegisterNumber)
			fmt.Fprintf(out, "%s, semester %s, section %s\n", profile.Department, profile.Semester, profile.Section)
			return nil
		},
	}
}

func newSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show per-subject attendance and exam eligibility",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.RequireRole(session.RoleStudent); err != nil {
				return err
			}

			ctx := cmd.Context()
			profile, err := app.Client.StudentProfile(ctx)
			if err != nil {
				return err
			}
			records, err := app.Client.ListAttendance(ctx)
			if err != nil {
				return err
			}

			overall, bySubject := report.Summarize(records, profile.ID)

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SUBJECT\tPRESENT\tTOTAL\tPERCENT\tELIGIBLE")
			for _, subject := range bySubject {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d%%\t%s\n",
					subject.Subject, subject.Present, subject.Total, subject.Percentage, eligibleLabel(subject.Eligible))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "\nOverall: %d%% (%d of %d) %s\n",
				overall.Percentage, overall.Present, overall.Total, eligibleLabel(overall.Eligible))
			return nil
		},
	}
}

func eligibleLabel(eligible bool) string {
	if eligible {
		return "eligible"
	}
	return "shortage"
}
