package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"realty_content/internal/domain"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage admin accounts",
}

var (
	userEmail    string
	userPassword string
	userName     string
	userRole     string
)

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]any{"email": userEmail, "password": userPassword, "role": userRole}
		if userName != "" {
			payload["name"] = userName
		}
		id, err := users.Create(cmd.Context(), payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", userEmail, id)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List admin accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := users.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.Status)
		}
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&userEmail, "email", "", "Account email")
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "Account password (min 8 characters)")
	usersCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	usersCreateCmd.Flags().StringVar(&userRole, "role", string(domain.RoleAdmin), "Admin, Editor or User")
	_ = usersCreateCmd.MarkFlagRequired("email")
	_ = usersCreateCmd.MarkFlagRequired("password")
	usersCmd.AddCommand(usersCreateCmd, usersListCmd)
}
