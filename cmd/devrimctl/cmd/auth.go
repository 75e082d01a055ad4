package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"devrim/internal/client/rest"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange email and password for a bearer token",
	Long: `Prints a bearer token for DEVRIM_TOKEN.

  export DEVRIM_TOKEN=$(devrimctl login --email alice@example.com)`,
	Args: cobra.NoArgs,
	// the only command that runs without a token
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv("DEVRIM_PASSWORD")
		}
		if strings.TrimSpace(loginEmail) == "" || password == "" {
			return errors.New("--email and a password (--password or DEVRIM_PASSWORD) are required")
		}
		api := rest.New(apiURL, "", rest.WithLogger(cliLogger()))
		res, err := api.Login(cmd.Context(), loginEmail, password)
		if errors.Is(err, rest.ErrBadCredentials) {
			return errors.New("email or password is wrong")
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Token)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the current token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api := rest.New(apiURL, apiToken, rest.WithLogger(cliLogger()))
		if err := api.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
