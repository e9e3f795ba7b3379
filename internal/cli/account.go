package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/maintsync/maintsync/internal/model"
	"github.com/maintsync/maintsync/internal/store"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage local accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		role, _ := cmd.Flags().GetString("role")
		sector, _ := cmd.Flags().GetString("sector")
		credential, _ := cmd.Flags().GetString("credential")

		acc, err := a.store.CreateAccount(cmd.Context(), store.CreateAccountParams{
			Name:       args[0],
			Role:       model.Role(role),
			Sector:     sector,
			Credential: credential,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s account %d: %s (%s)\n", okMark(), acc.ID, acc.Name, acc.Role)
		return nil
	},
}

var accountEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit an account; only the given flags change",
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

		var upd store.AccountUpdate
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			upd.Name = &v
		}
		if cmd.Flags().Changed("sector") {
			v, _ := cmd.Flags().GetString("sector")
			upd.Sector = &v
		}
		if cmd.Flags().Changed("role") {
			v, _ := cmd.Flags().GetString("role")
			r := model.Role(v)
			upd.Role = &r
		}
		if cmd.Flags().Changed("credential") {
			v, _ := cmd.Flags().GetString("credential")
			upd.Credential = &v
		}

		acc, err := a.store.UpdateAccount(cmd.Context(), id, upd)
		if err != nil {
			return err
		}
		fmt.Printf("%s account %d updated\n", okMark(), acc.ID)
		return nil
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete an account",
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

		if err := a.store.DeleteAccount(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("%s account %d deleted\n", okMark(), id)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		accounts := a.store.ListAccounts()
		if len(accounts) == 0 {
			fmt.Println("No accounts")
			return nil
		}
		fmt.Printf("%-5s %-25s %-12s %s\n", "ID", "NAME", "ROLE", "SECTOR")
		for _, acc := range accounts {
			fmt.Printf("%-5d %-25s %-12s %s\n", acc.ID, acc.Name, acc.Role, acc.Sector)
		}
		return nil
	},
}

func okMark() string {
	return color.New(color.FgGreen).Sprint("✓")
}

// AccountCmd returns the account command tree.
func AccountCmd() *cobra.Command {
	accountAddCmd.Flags().StringP("role", "r", "requester", "Role: requester, technician, manager, admin")
	accountAddCmd.Flags().StringP("sector", "s", "", "Sector the account belongs to")
	accountAddCmd.Flags().StringP("credential", "p", "", "Optional credential for remote login")

	accountEditCmd.Flags().String("name", "", "New name")
	accountEditCmd.Flags().StringP("sector", "s", "", "New sector")
	accountEditCmd.Flags().StringP("role", "r", "", "New role")
	accountEditCmd.Flags().StringP("credential", "p", "", "New credential")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountEditCmd)
	accountCmd.AddCommand(accountRemoveCmd)
	accountCmd.AddCommand(accountListCmd)
	return accountCmd
}
