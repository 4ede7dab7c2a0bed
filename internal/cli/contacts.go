// Package cli implements the contacts commands.
package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/amie-labs/agentgate/internal/db"
	"github.com/amie-labs/agentgate/internal/output"
)

var (
	flagContactsUser string
	flagContactEmail string
	flagContactPhone string
)

func init() {
	contactsCmd.PersistentFlags().StringVarP(&flagContactsUser, "user", "u", "", "user ID (required)")
	contactsAddCmd.Flags().StringVar(&flagContactEmail, "email", "", "contact email address")
	contactsAddCmd.Flags().StringVar(&flagContactPhone, "phone", "", "contact phone number")

	contactsCmd.AddCommand(contactsAddCmd)
	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsRemoveCmd)
	rootCmd.AddCommand(contactsCmd)
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage a user's contact book",
	Long: `Manage the contact book consulted for third-party outreach.

Actions that email a contact must name a recipient that resolves here;
unknown recipients are rejected with INVALID_RECIPIENT.`,
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagContactsUser == "" {
			return fmt.Errorf("--user is required")
		}
		dbConn, err := openStore()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		c := &db.Contact{
			UserID: flagContactsUser,
			Name:   args[0],
			Email:  flagContactEmail,
			Phone:  flagContactPhone,
		}
		if err := dbConn.AddContact(c); err != nil {
			return fmt.Errorf("adding contact: %w", err)
		}
		return output.New(output.Format(GetOutput())).Write(c)
	},
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagContactsUser == "" {
			return fmt.Errorf("--user is required")
		}
		dbConn, err := openStore()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		contacts, err := dbConn.ListContacts(flagContactsUser)
		if err != nil {
			return fmt.Errorf("listing contacts: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		if out.IsJSON() {
			return out.Write(map[string]any{
				"contacts": contacts,
				"count":    len(contacts),
			})
		}
		if len(contacts) == 0 {
			return out.Write("no contacts")
		}
		rows := make([][]string, len(contacts))
		for i, c := range contacts {
			rows[i] = []string{strconv.FormatInt(c.ID, 10), c.Name, c.Email, c.Phone}
		}
		output.OutputTable([]string{"ID", "NAME", "EMAIL", "PHONE"}, rows)
		return nil
	},
}

var contactsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagContactsUser == "" {
			return fmt.Errorf("--user is required")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid contact id %q", args[0])
		}
		dbConn, err := openStore()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		if err := dbConn.DeleteContact(flagContactsUser, id); err != nil {
			return fmt.Errorf("removing contact: %w", err)
		}
		return output.New(output.Format(GetOutput())).Write(map[string]any{
			"removed": id,
		})
	},
}
