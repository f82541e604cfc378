package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"chatgogo/client/internal/api"
	"chatgogo/client/internal/config"
	"chatgogo/client/internal/devserver"
	"chatgogo/client/internal/logging"
	"chatgogo/client/internal/models"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "chatgogo",
		Short:        "Terminal client for the chatgogo messaging service",
		SilenceUsage: true,
	}
	root.AddCommand(
		newRegisterCmd(cfg),
		newLoginCmd(cfg),
		newLogoutCmd(cfg),
		newMeCmd(cfg),
		newUsersCmd(cfg),
		newRoomsCmd(cfg),
		newOpenCmd(cfg),
		newDevserverCmd(cfg),
	)
	return root
}

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.APIURL, cfg.WSURL)
}

// authedClient loads the persisted session and returns a client carrying it.
func authedClient(cfg *config.Config) (*api.Client, *api.Credentials, error) {
	creds, err := api.LoadCredentials(cfg.TokenPath)
	if err != nil {
		return nil, nil, fmt.Errorf("not logged in (%w); run 'chatgogo login' first", err)
	}
	c := newClient(cfg)
	c.SetToken(creds.Token)
	return c, creds, nil
}

// reportFieldErrors prints validation messages inline and reports whether it
// handled the error.
func reportFieldErrors(err error) bool {
	fields, ok := models.AsValidation(err)
	if !ok {
		return false
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	for _, f := range names {
		for _, msg := range fields[f] {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f, msg)
		}
	}
	return true
}

func newRegisterCmd(cfg *config.Config) *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			c := newClient(cfg)
			res, err := c.Register(ctx, email, password, password, name)
			if err != nil {
				if reportFieldErrors(err) {
					return fmt.Errorf("registration rejected")
				}
				return err
			}
			if err := saveSession(cfg, res); err != nil {
				return err
			}
			fmt.Printf("Registered as %s <%s>. A confirmation mail is on its way.\n", res.User.FullName, res.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(cfg *config.Config) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			c := newClient(cfg)
			res, err := c.Login(ctx, email, password)
			if err != nil {
				if reportFieldErrors(err) {
					return fmt.Errorf("login rejected")
				}
				return err
			}
			if err := saveSession(cfg, res); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s.\n", res.User.FullName)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func saveSession(cfg *config.Config, res *api.AuthResult) error {
	return api.SaveCredentials(cfg.TokenPath, &api.Credentials{
		Token:    res.Token,
		UserID:   res.User.ID,
		FullName: res.User.FullName,
		Email:    res.User.Email,
	})
}

func newLogoutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return api.ClearCredentials(cfg.TokenPath)
		},
	}
}

func newMeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := authedClient(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			user, err := c.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d  %s <%s>\n", user.ID, user.FullName, user.Email)
			return nil
		},
	}
}

func newUsersCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := authedClient(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			users, err := c.Users(ctx)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("%d  %s <%s>\n", u.ID, u.FullName, u.Email)
			}
			return nil
		},
	}
}

func newRoomsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List your rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := authedClient(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			rooms, err := c.Rooms(ctx)
			if err != nil {
				return err
			}
			for _, r := range rooms {
				fmt.Printf("%d  with %s\n", r.ID, r.Counterpart().FullName)
			}
			return nil
		},
	}
}

func newDevserverCmd(cfg *config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local in-memory backend with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := devserver.New("devserver-secret")
			alice := srv.CreateUser("Alice Martin", "alice@example.com", "password1")
			bob := srv.CreateUser("Bob Koval", "bob@example.com", "password1")
			roomID := srv.CreateRoom(alice.ID, bob.ID)
			srv.InjectMessage(roomID, bob.ID, "hi there")
			fmt.Printf("Demo users alice@example.com and bob@example.com (password1), room %d\n", roomID)
			return srv.Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
