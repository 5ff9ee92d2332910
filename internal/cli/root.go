// Package cli wires the rollcall commands. Every command talks to the remote
// API through the session-aware client, so token attachment and the
// refresh-and-retry on expiry happen uniformly underneath.
package cli

import (
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rollcall-labs/rollcall/internal/api"
	"github.com/rollcall-labs/rollcall/internal/config"
	"github.com/rollcall-labs/rollcall/internal/session"
)

// App bundles the dependencies the commands share.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Manager  *session.Manager
	Client   *api.Client
	Validate *validator.Validate
}

// NewRootCmd builds the rollcall command tree.
func NewRootCmd(app *App) *cobra.Command {
	if app.Validate == nil {
		app.Validate = validator.New(validator.WithRequiredStructEnabled())
	}

	root := &cobra.Command{
		Use:           "rollcall",
		Short:         "Attendance tracking for students and teachers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newChangePasswordCmd(app),
		newProfileCmd(app),
		newSummaryCmd(app),
		newRosterCmd(app),
		newMarkCmd(app),
		newSessionsCmd(app),
		newImportCmd(app),
	)

	return root
}
