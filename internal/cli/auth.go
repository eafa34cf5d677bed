package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantumwallet/qwallet/internal/gateway"
	"github.com/quantumwallet/qwallet/internal/output"
	"github.com/quantumwallet/qwallet/internal/session"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// authUsername is the account name for login and register.
	authUsername string
	// loginPrintURL prints the backend login page instead of signing in.
	loginPrintURL bool
)

// loginCmd signs in with a username and password.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the custody backend",
	Long: `Sign in with a username and password. The password is read with hidden
input on a terminal, or as one line from standard input otherwise.

In direct mode the session cookie is kept encrypted under the qwallet home so
later commands stay signed in. In relayed mode the relay host holds the session.

Use --print-url to show the backend's own login page instead.`,
	Example: `  qwallet login -u alice
  echo "$PASSWORD" | qwallet login -u alice
  qwallet login --print-url`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAuthenticate(cmd, false)
	},
}

// registerCmd creates an account.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Long: `Create an account on the custody backend and sign in with it.

On a terminal the password is asked twice.`,
	Example: `  qwallet register -u alice`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAuthenticate(cmd, true)
	},
}

// logoutCmd ends the session.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	Long: `End the backend session. The locally saved session is removed even when
the backend cannot be reached.`,
	Example: `  qwallet logout`,
	Args:    cobra.NoArgs,
	RunE:    runLogout,
}

// whoamiCmd shows the signed-in identity.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the signed-in user",
	Long:    `Ask the backend who the current session belongs to.`,
	Example: `  qwallet whoami`,
	Args:    cobra.NoArgs,
	RunE:    runWhoami,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd, logoutCmd, whoamiCmd} {
		c.GroupID = groupAccount
		rootCmd.AddCommand(c)
	}

	loginCmd.Flags().StringVarP(&authUsername, "username", "u", "", "account username (prompted when omitted)")
	loginCmd.Flags().BoolVar(&loginPrintURL, "print-url", false, "print the backend login page URL and exit")
	registerCmd.Flags().StringVarP(&authUsername, "username", "u", "", "account username (prompted when omitted)")
}

func runAuthenticate(cmd *cobra.Command, register bool) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	gw, err := cc.Gateway(ctx)
	if err != nil {
		return err
	}

	if loginPrintURL && !register {
		u, err := gw.LoginURL(ctx)
		if err != nil {
			return err
		}
		return cc.Fmt.Emit(map[string]string{"url": u}, func(w io.Writer) error {
			outln(w, u)
			return nil
		})
	}

	creds, err := readCredentials(cmd, register)
	if err != nil {
		return err
	}

	var id *session.Identity
	if register {
		id, err = gw.Register(ctx, creds)
	} else {
		id, err = gw.Login(ctx, creds)
	}
	if err != nil {
		return err
	}
	if id == nil {
		// Signed in, but the answer carried no user
		if id, err = gw.CurrentUser(ctx); err != nil {
			return err
		}
	}

	cc.Log.Debug("signed in as %s", id.Username)
	return printIdentity(cc.Fmt, id)
}

func readCredentials(cmd *cobra.Command, register bool) (gateway.Credentials, error) {
	username := strings.TrimSpace(authUsername)
	if username == "" {
		line, err := promptLine(cmd, "Username: ")
		if err != nil {
			return gateway.Credentials{}, err
		}
		username = strings.TrimSpace(line)
	}

	password, err := promptPassword(cmd, "Password: ")
	if err != nil {
		return gateway.Credentials{}, err
	}

	if register && interactive(cmd) {
		confirm, err := promptPassword(cmd, "Confirm password: ")
		if err != nil {
			return gateway.Credentials{}, err
		}
		if confirm != password {
			return gateway.Credentials{}, qwerr.WithSuggestion(qwerr.ErrInvalidInput, "passwords do not match")
		}
	}

	creds := gateway.Credentials{Username: username, Password: password}
	if err := gateway.ValidateCredentials(creds); err != nil {
		return creds, err
	}
	return creds, nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cc.ForgetSession()

	gw, err := cc.Gateway(ctx)
	if err != nil {
		return err
	}
	if err := gw.Logout(ctx); err != nil {
		// The session is already gone
		if !qwerr.IsUnauthorized(err) {
			return err
		}
	}
	return output.FormatSuccess(cmd.OutOrStdout(), "signed out", cc.Fmt.Format())
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	gw, err := cc.Gateway(ctx)
	if err != nil {
		return err
	}
	id, err := gw.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return printIdentity(cc.Fmt, id)
}

func printIdentity(rw ResultWriter, id *session.Identity) error {
	return rw.Emit(id, func(w io.Writer) error {
		out(w, "Signed in as %s (id %d)\n", id.Username, id.UserID)
		if !id.IsDeveloper {
			outln(w, "Developer account: not enabled")
			return nil
		}
		outln(w, "Developer account: enabled")
		if p := id.DeveloperProfile; p != nil {
			out(w, "  Company:  %s\n", p.Company)
			out(w, "  Website:  %s\n", dash(p.Website))
			out(w, "  Use case: %s\n", dash(p.UseCase))
		}
		return nil
	})
}
