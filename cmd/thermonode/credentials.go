package main

import (
	"fmt"

	"github.com/jgoulah/thermonode/internal/credentials"
	"github.com/jgoulah/thermonode/pkg/models"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored WiFi credentials",
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored network",
	Long:  `Prints the stored SSID. The password is masked.`,
	RunE:  runCredentialsShow,
}

var credentialsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase the stored credentials",
	Long:  `Erases the stored credentials so the next boot starts the setup form.`,
	RunE:  runCredentialsClear,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set SSID PASSWORD",
	Short: "Store credentials without the setup form",
	Args:  cobra.ExactArgs(2),
	RunE:  runCredentialsSet,
}

func init() {
	credentialsCmd.AddCommand(credentialsShowCmd, credentialsClearCmd, credentialsSetCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func withStore(fn func(*credentials.Store) error) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return fn(credentials.NewStore(db))
}

func runCredentialsShow(cmd *cobra.Command, args []string) error {
	return withStore(func(s *credentials.Store) error {
		c, err := s.Load()
		if err != nil {
			return err
		}
		if !c.Valid() {
			fmt.Println("No credentials stored")
			return nil
		}
		fmt.Printf("SSID:     %s\n", c.SSID)
		fmt.Printf("Password: %s\n", mask(c.Password))
		return nil
	})
}

func runCredentialsClear(cmd *cobra.Command, args []string) error {
	return withStore(func(s *credentials.Store) error {
		if err := s.Clear(); err != nil {
			return err
		}
		fmt.Println("Credentials cleared")
		return nil
	})
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	return withStore(func(s *credentials.Store) error {
		if err := s.Save(models.Credentials{SSID: args[0], Password: args[1]}); err != nil {
			return err
		}
		fmt.Printf("Credentials saved for %s\n", args[0])
		return nil
	})
}

func mask(s string) string {
	r := []rune(s)
	if len(r) <= 2 {
		return "****"
	}
	return string(r[:1]) + "****" + string(r[len(r)-1:])
}
