package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "account",
	Short:   "Store the API token",
	Long: `Store the integration token used to reach the remote workspace.

The token is written with owner-only permissions to the credential file
(credential.file in the config). The PRACTICE_TOKEN environment variable,
when set, takes precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")

		if token == "" {
			var err error
			token, err = promptToken()
			if err != nil {
				return err
			}
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return errors.New("empty token")
		}

		store := cfg.CredentialStore()
		if err := store.Save(token); err != nil {
			return err
		}
		fmt.Printf("%s Token saved to %s\n", renderPass("✓"), store.Path())
		return nil
	},
}

// promptToken asks for the token with a masked field on a terminal and
// reads one line otherwise.
func promptToken() (string, error) {
	if !stdinIsTerminal() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read token: %w", err)
		}
		return line, nil
	}

	var token string
	err := huh.NewInput().
		Title("API token").
		Description("Paste the integration token for your workspace.").
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("token is required")
			}
			return nil
		}).
		Value(&token).
		Run()
	return token, err
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "account",
	Short:   "Remove the stored API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cfg.CredentialStore()
		if err := store.Revoke(); err != nil {
			return err
		}
		fmt.Printf("%s Token removed\n", renderPass("✓"))
		return nil
	},
}

func init() {
	loginCmd.Flags().String("token", "", "token value (prompted when omitted)")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
