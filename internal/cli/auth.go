package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollcall-labs/rollcall/internal/dto"
	"github.com/rollcall-labs/rollcall/internal/session"
)

func newLoginCmd(app *App) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.TokenRequest{Username: username, Password: password}
			if err := app.Validate.Struct(req); err != nil {
				return fmt.Errorf("username and password are required")
			}

			result, err := app.Manager.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			if result.MustChangePassword {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in. Your password must be changed before anything else:")
				fmt.Fprintln(cmd.OutOrStdout(), "  rollcall change-password --old <current> --new <new>")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", result.Username, result.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Manager.IsAuthenticated() {
				return session.ErrNotAuthenticated
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", app.Manager.Username(), app.Manager.Role())
			return nil
		},
	}
}

func newChangePasswordCmd(app *App) *cobra.Command {
	var oldPassword, newPassword string

	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
			if err := app.Validate.Struct(req); err != nil {
				return fmt.Errorf("new password must be at least 8 characters and differ from the old one")
			}

			if err := app.Client.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
				return err
			}

			// The stored token pair predates the new password; force a
			// fresh login rather than keeping a half-valid session.
			if err := app.Manager.Invalidate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed. Log in again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&oldPassword, "old", "", "current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "new password")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}
