package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login [account-id]",
	Short: "Authenticate against the server and cache the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("account id must be numeric: %q", args[0])
		}
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		credential, _ := cmd.Flags().GetString("credential")
		if credential == "" {
			fmt.Print("Credential: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read credential: %w", err)
			}
			credential = string(raw)
		}

		if err := a.remote.Login(cmd.Context(), id, credential); err != nil {
			return err
		}
		fmt.Printf("%s logged in as account %d\n", okMark(), id)
		return nil
	},
}

// LoginCmd returns the login command.
func LoginCmd() *cobra.Command {
	loginCmd.Flags().StringP("credential", "p", "", "Credential (prompted when omitted)")
	return loginCmd
}
