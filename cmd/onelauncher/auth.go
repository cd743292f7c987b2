package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Polyfrost/onelauncher-core/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Microsoft accounts (login, default user, removal)",
}

var authBeginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Start a Microsoft login and print the URL to open in a browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, err := app.AuthFlow.Begin(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("open this URL to sign in:\n%s\n\n", flow.RedirectURI)
		fmt.Printf("session: %s\n", flow.SessionID)
		fmt.Printf("after signing in, run:\n  onelauncher auth finish --session %s --verifier %s --code <code>\n", flow.SessionID, flow.Verifier)
		return nil
	},
}

var (
	authFinishSession  string
	authFinishVerifier string
	authFinishCode     string
)

var authFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Complete a Microsoft login with the authorization code from the browser redirect",
	RunE: func(cmd *cobra.Command, args []string) error {
		flow := &auth.LoginFlow{SessionID: authFinishSession, Verifier: authFinishVerifier}
		cred, err := app.AuthFlow.Finish(cmd.Context(), authFinishCode, flow)
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (%s)\n", cred.Username, cred.UUID)
		return nil
	},
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List signed-in Microsoft accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		users := app.AuthStore.List()
		if len(users) == 0 {
			fmt.Println("no accounts signed in")
			return nil
		}
		def, _ := app.AuthStore.DefaultUser()
		t := newTable(table.Row{"UUID", "Username", "Default", "Expires"})
		for _, u := range users {
			marker := ""
			if u.UUID == def.UUID {
				marker = "*"
			}
			t.AppendRow(table.Row{u.UUID, u.Username, marker, u.ExpiresAt.Format("2006-01-02 15:04:05")})
		}
		t.Render()
		return nil
	},
}

var authSetDefaultCmd = &cobra.Command{
	Use:   "set-default <uuid>",
	Short: "Select the account used for launch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.AuthStore.SetDefaultUser(args[0])
	},
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove <uuid>",
	Short: "Sign out an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.AuthStore.Remove(args[0])
	},
}

func init() {
	authFinishCmd.Flags().StringVar(&authFinishSession, "session", "", "session id printed by 'auth begin' (required)")
	authFinishCmd.Flags().StringVar(&authFinishVerifier, "verifier", "", "PKCE verifier printed by 'auth begin' (required)")
	authFinishCmd.Flags().StringVar(&authFinishCode, "code", "", "authorization code from the browser redirect (required)")
	authFinishCmd.MarkFlagRequired("session")
	authFinishCmd.MarkFlagRequired("verifier")
	authFinishCmd.MarkFlagRequired("code")

	authCmd.AddCommand(authBeginCmd)
	authCmd.AddCommand(authFinishCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authSetDefaultCmd)
	authCmd.AddCommand(authRemoveCmd)
}
