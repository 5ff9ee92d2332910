package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rollcall-labs/rollcall/internal/dto"
	"github.com/rollcall-labs/rollcall/internal/marking"
	"github.com/rollcall-labs/rollcall/internal/session"
)

func newRosterCmd(app *App) *cobra.Command {
	var subjectID int
	var semester, section string

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "List students markable for a subject, semester and section",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.RequireRole(session.RoleTeacher); err != nil {
				return err
			}

			students, err := app.Client.Roster(cmd.Context(), subjectID, semester, section)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tREGISTER\tNAME")
			for _, student := range students {
				fmt.Fprintf(w, "%d\t%s\t%s\n", student.ID, student.RegisterNumber, student.FullName)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&subjectID, "subject", 0, "subject id")
	cmd.Flags().StringVar(&semester, "semester", "", "semester")
	cmd.Flags().StringVar(&section, "section", "", "section")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("semester")
	_ = cmd.MarkFlagRequired("section")
	return cmd
}

func newMarkCmd(app *App) *cobra.Command {
	var subjectID, period int
	var semester, section, date, presentList, absentList string

	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Record attendance for a whole roster in one session",
		Long: "Fetches the roster for the selection, applies the given statuses and " +
			"submits all marks as a single batch. Submission is refused while any " +
			"roster entry is unmarked, so a session can never silently omit students.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.RequireRole(session.RoleTeacher); err != nil {
				return err
			}

			ctx := cmd.Context()
			profile, err := app.Client.TeacherProfile(ctx)
			if err != nil {
				return err
			}

			var subject dto.Subject
			found := false
			for _, s := range profile.Subjects {
				if s.ID == subjectID {
					subject = s
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("subject %d is not assigned to you", subjectID)
			}

			sheet := marking.NewSheet()
			sheet.Select(subject, semester, section)

			roster, err := app.Client.Roster(ctx, subjectID, semester, section)
			if err != nil {
				return err
			}
			if err := sheet.LoadRoster(roster); err != nil {
				return err
			}

			if err := applyStatuses(sheet, presentList, dto.StatusPresent); err != nil {
				return err
			}
			if err := applyStatuses(sheet, absentList, dto.StatusAbsent); err != nil {
				return err
			}

			if date == "" {
				date = time.Now().Format("2006-01-02")
			}

			err = sheet.Submit(ctx, app.Client, date, period)
			var unmarked marking.ErrUnmarked
			if errors.As(err, &unmarked) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Mark all students (%d left):\n", unmarked.Count)
				for _, student := range sheet.Unmarked() {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %d %s\n", student.ID, student.FullName)
				}
				return err
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d marks for %s on %s, period %d\n",
				len(roster), subject.Name, date, period)
			return nil
		},
	}

	cmd.Flags().IntVar(&subjectID, "subject", 0, "subject id")
	cmd.Flags().StringVar(&semester, "semester", "", "semester")
	cmd.Flags().StringVar(&section, "section", "", "section")
	cmd.Flags().IntVar(&period, "period", 1, "period number (1-8)")
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&presentList, "present", "", "comma-separated student ids marked present")
	cmd.Flags().StringVar(&absentList, "absent", "", "comma-separated student ids marked absent")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("semester")
	_ = cmd.MarkFlagRequired("section")
	return cmd
}

func applyStatuses(sheet *marking.Sheet, list string, status dto.Status) error {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	for _, field := range strings.Split(list, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return fmt.Errorf("invalid student id %q", field)
		}
		if err := sheet.SetStatus(id, status); err != nil {
			return err
		}
	}
	return nil
}

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Review and edit recorded attendance sessions",
	}

	var showDeleted bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.RequireRole(session.RoleTeacher); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if showDeleted {
				rows, err := app.Client.DeletedSessions(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "SESSION\tDATE\tSUBJECT\tPERIOD\tTOTAL")
				for _, row := range rows {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", row.SessionID, row.Date, row.SubjectName, row.Session, row.Total)
				}
				return w.Flush()
			}

			rows, err := app.Client.TeacherSummary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "SESSION\tDATE\tSUBJECT\tPERIOD\tPRESENT\tABSENT")
			for _, row := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", row.SessionID, row.Date, row.SubjectName, row.Session, row.Present, row.Absent)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&showDeleted, "deleted", false, "show soft-deleted sessions instead")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the individual marks in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.RequireRole(session.RoleTeacher); err != nil {
				return err
			}

			marks, err := app.Client.SessionDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STUDENT\tSTATUS")
			for _, mark := range marks {
				fmt.Fprintf(w, "%s\t%s\n", mark.StudentName, mark.Status)
			}
			return w.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Soft-delete a whole session (restorable)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.RequireRole(session.RoleTeacher); err != nil {
				return err
			}
			if err := app.Client.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session deleted")
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <session-id>",
		Short: "Restore a soft-deleted session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.RequireRole(session.RoleTeacher); err != nil {
				return err
			}
			if err := app.Client.RestoreSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session restored")
			return nil
		},
	}

	cmd.AddCommand(list, show, del, restore)
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Bulk-import students from a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.RequireRole(session.RoleTeacher); err != nil {
				return err
			}

			result, err := app.Client.ImportStudents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d students created)\n", result.Message, result.CreatedStudents)
			return nil
		},
	}
}
