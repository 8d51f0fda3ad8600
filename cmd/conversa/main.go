package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"conversa/internal/app"
	"conversa/internal/tui"
)

const (
	version = "1.0.0"
	repoURL = "https://github.com/conversa-chat/conversa"
)

func newClient(cmd *cobra.Command) (*app.Client, error) {
	cfg, err := app.LoadConfig(app.DefaultConfigPath())
	if err != nil {
		return nil, err
	}
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.ServerURL = server
	}
	logger, _ := app.OpenLogFile()
	return app.NewClient(cfg.ServerURL, logger), nil
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func main() {
	root := &cobra.Command{
		Use:     "conversa",
		Short:   "Conversa - terminal chat client",
		Long:    "Conversa is a full-screen terminal client for the Conversa chat backend.\n\nRun without arguments to open the chat interface.\n\nFor more information, visit: " + repoURL,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			mode, _ := cmd.Flags().GetString("mode")
			session, _ := cmd.Flags().GetString("session")
			noColor, _ := cmd.Flags().GetBool("no-color")
			return tui.Run(tui.Options{
				ServerURL: server,
				Mode:      mode,
				SessionID: session,
				NoColor:   noColor,
			})
		},
	}

	root.PersistentFlags().String("server", "", "backend base URL (default from config)")
	root.Flags().String("mode", "", "start in mode: regular|uncensored|ocr")
	root.Flags().String("session", "", "open a specific session on start")
	root.Flags().Bool("no-color", false, "disable colors")

	loginCmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and store the session cookie",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			username := ""
			if len(args) > 0 {
				username = args[0]
			} else if username, err = prompt("Username: "); err != nil {
				return err
			}
			password, err := prompt("Password: ")
			if err != nil {
				return err
			}
			if err := client.Login(context.Background(), app.Credentials{Username: username, Password: password}); err != nil {
				return err
			}
			fmt.Println("Logged in.")
			return nil
		},
	}

	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			username, err := prompt("Username: ")
			if err != nil {
				return err
			}
			email, err := prompt("Email: ")
			if err != nil {
				return err
			}
			password, err := prompt("Password: ")
			if err != nil {
				return err
			}
			if err := client.Signup(context.Background(), app.Credentials{Username: username, Email: email, Password: password}); err != nil {
				return err
			}
			fmt.Println("Account created.")
			return nil
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "End the current server session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := client.Logout(context.Background()); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}

	forgotCmd := &cobra.Command{
		Use:   "forgot-password [email]",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := client.ForgotPassword(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("Reset email requested.")
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset-password [token]",
		Short: "Set a new password using a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			password, err := prompt("New password: ")
			if err != nil {
				return err
			}
			if err := client.ResetPassword(context.Background(), args[0], password); err != nil {
				return err
			}
			fmt.Println("Password updated.")
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, err := prompt("Type 'delete' to confirm: ")
			if err != nil {
				return err
			}
			if confirm != "delete" {
				return fmt.Errorf("aborted")
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteAccount(context.Background()); err != nil {
				return err
			}
			fmt.Println("Account deleted.")
			return nil
		},
	}

	extractCmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract text from an image via OCR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			out, err := client.ExtractText(context.Background(), args[0], "", app.ModeOCR)
			if err != nil {
				return err
			}
			fmt.Println(out.Text)
			return nil
		},
	}

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent client errors from the log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			events, err := app.ReadRecentErrors(app.DefaultLogPath(), limit)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("No log file yet.")
					return nil
				}
				return err
			}
			if len(events) == 0 {
				fmt.Println("No recent errors.")
				return nil
			}
			for _, ev := range events {
				fmt.Printf("%s  %s", ev.Timestamp, ev.Message)
				for k, v := range ev.Fields {
					fmt.Printf("  %s=%v", k, v)
				}
				fmt.Println()
			}
			return nil
		},
	}
	logsCmd.Flags().Int("limit", 40, "max entries to show")

	root.AddCommand(loginCmd, signupCmd, logoutCmd, forgotCmd, resetCmd, deleteCmd, extractCmd, logsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
