package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chatgogo/client/internal/config"
	"chatgogo/client/internal/history"
	"chatgogo/client/internal/models"
	"chatgogo/client/internal/roomsync"
)

func newOpenCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "open <room-id>",
		Short: "Open a room and chat interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid room id %q", args[0])
			}

			c, creds, err := authedClient(cfg)
			if err != nil {
				return err
			}

			opts := []roomsync.Option{}
			cache, err := history.Open(cfg.HistoryPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "history cache unavailable: %v\n", err)
			} else {
				defer cache.Close()
				opts = append(opts, roomsync.WithRecorder(cache))
			}

			session := roomsync.NewSession(c, creds.UserID, opts...)
			defer session.Close()

			updates := session.Subscribe()
			go renderUpdates(updates)

			if err := session.OpenRoom(cmd.Context(), roomID); err != nil {
				return err
			}

			return repl(cmd.Context(), session)
		},
	}
}

// renderUpdates prints state changes and newly arrived messages.
func renderUpdates(updates roomsync.Observer) {
	var shown int64 // highest message id already printed
	for u := range updates {
		switch u.State {
		case roomsync.StateLoading:
			fmt.Println("-- loading --")
		case roomsync.StateFailed:
			fmt.Printf("-- failed: %v (use /refresh to retry) --\n", u.Err)
		case roomsync.StateReady:
			if u.Err != nil {
				fmt.Printf("-- warning: %v --\n", u.Err)
			}
			for _, m := range u.Messages {
				if m.ID > shown {
					fmt.Printf("[%d] %s (%s): %s\n", m.ID, m.Sender.FullName, m.Time, m.Text)
					shown = m.ID
				}
			}
		}
	}
}

// repl reads commands from stdin: plain text sends a message, /edit, /delete
// and /refresh drive the other mutations.
func repl(ctx context.Context, session *roomsync.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/refresh":
			if err := session.Refresh(ctx); err != nil && !errors.Is(err, roomsync.ErrSuperseded) {
				fmt.Fprintf(os.Stderr, "refresh: %v\n", err)
			}
		case strings.HasPrefix(line, "/edit "):
			id, text, ok := splitIDArg(strings.TrimPrefix(line, "/edit "))
			if !ok {
				fmt.Fprintln(os.Stderr, "usage: /edit <id> <new text>")
				continue
			}
			if err := session.Edit(ctx, id, text); err != nil {
				reportMutationError("edit", err)
			}
		case strings.HasPrefix(line, "/delete "):
			id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/delete ")), 10, 64)
			if err != nil {
				fmt.Fprintln(os.Stderr, "usage: /delete <id>")
				continue
			}
			if err := session.Delete(ctx, id); err != nil {
				reportMutationError("delete", err)
			}
		default:
			if _, err := session.Send(ctx, line); err != nil {
				reportMutationError("send", err)
			}
		}
	}
	return scanner.Err()
}

func splitIDArg(s string) (int64, string, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), " ", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, parts[1], true
}

func reportMutationError(op string, err error) {
	if reportFieldErrors(err) {
		return
	}
	var te *models.TransportError
	if errors.As(err, &te) {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", op, te)
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", op, err)
}
