package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/finchat-client/internal/auth"
	"github.com/vovakirdan/finchat-client/internal/config"
	"github.com/vovakirdan/finchat-client/internal/log"
)

var (
	flagConfig   string
	flagServer   string
	flagAPI      string
	flagLogLevel string

	cfg    config.Config
	logger *zerolog.Logger
	tokens auth.TokenStore
	api    *auth.Client
)

func main() {
	root := &cobra.Command{
		Use:           "finchat",
		Short:         "finchat chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, path, err := config.Load(nil, flagConfig)
			if err != nil {
				return err
			}
			cfg = loaded
			cfg.UpdateFrom(config.Config{
				ServerURL: flagServer,
				APIURL:    flagAPI,
				LogLevel:  flagLogLevel,
			})
			logger = log.New(cfg.LogLevel)
			logger.Debug().Str("config", path).Msg("configuration loaded")
			tokens = auth.NewFileStore(cfg.TokenPath)
			api = auth.NewClient(cfg.APIURL, tokens, logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "chat websocket address")
	root.PersistentFlags().StringVar(&flagAPI, "api", "", "auth API base URL")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(loginCmd(), registerCmd(), logoutCmd(), whoamiCmd(), chatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "finchat:", err)
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := api.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func registerCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := api.Register(cmd.Context(), username, email, password); err != nil {
				return err
			}
			fmt.Printf("registered as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account e-mail address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and drop the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current account",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s>\n", profile.Username, profile.Email)
			return nil
		},
	}
}
