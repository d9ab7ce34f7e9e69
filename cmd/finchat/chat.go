package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/finchat-client/internal/core"
	"github.com/vovakirdan/finchat-client/internal/proto"
	"github.com/vovakirdan/finchat-client/internal/transport/ws"
)

func chatCmd() *cobra.Command {
	var room string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Connect and chat interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(room)
		},
	}
	cmd.Flags().StringVarP(&room, "room", "r", "", "room to join after connecting")
	return cmd
}

func runChat(room string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fatal := make(chan string, 1)
	session := core.NewSession(cfg.ServerURL, ws.Dial, tokens, printHandlers(fatal), logger)

	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := session.Disconnect(); err != nil && !errors.Is(err, core.ErrNotConnected) {
			logger.Warn().Err(err).Msg("disconnect")
		}
	}()

	if room != "" {
		if err := session.Join(room); err != nil {
			return err
		}
	}

	fmt.Println("Type messages and press Enter to send. /help for commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case code := <-fatal:
			return fmt.Errorf("session ended: %s", code)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(session, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// handleLine interprets one stdin line: /-prefixed words are client
// commands, /name=payload goes out as a custom command, everything
// else is a chat message to the active room.
func handleLine(session *core.Session, line string) bool {
	if line == "" {
		return false
	}
	state := session.State()

	var err error
	switch {
	case line == "/quit":
		return true
	case line == "/help":
		fmt.Println("/list /rooms /join <room> /part /users /quit /<cmd>=<payload>")
	case line == "/list":
		err = session.List()
	case line == "/rooms":
		for _, name := range state.RoomNames() {
			marker := " "
			if name == state.ActiveRoom() {
				marker = "*"
			}
			if name == core.PseudoRoom {
				name = "(server logs)"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
	case line == "/users":
		for name, self := range state.Roster(state.ActiveRoom()) {
			fmt.Println(displayName(name, self))
		}
	case strings.HasPrefix(line, "/join "):
		err = session.Join(strings.TrimSpace(strings.TrimPrefix(line, "/join ")))
	case line == "/part":
		err = session.Part(state.ActiveRoom())
	case strings.HasPrefix(line, "/"):
		name, payload, _ := strings.Cut(line[1:], "=")
		err = session.Custom(state.ActiveRoom(), name, payload)
	default:
		err = session.Talk(state.ActiveRoom(), line)
	}
	if err != nil {
		fmt.Println("!", err)
	}
	return false
}

func printHandlers(fatal chan<- string) core.Handlers {
	return core.Handlers{
		Open: func() {
			fmt.Println("connected")
		},
		Fatal: func(code string) {
			select {
			case fatal <- code:
			default:
			}
		},
		Error: func(code, details string) {
			fmt.Printf("! error %s: %s\n", code, details)
		},
		List: func(rooms []proto.RoomSummary) {
			for _, r := range rooms {
				marker := " "
				if r.Joined {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, r.Name)
			}
		},
		Users: func(room string, users []proto.UserEntry) {
			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, displayName(u.Name, u.You))
			}
			fmt.Printf("[%s] users: %s\n", room, strings.Join(names, ", "))
		},
		History: func(room string, messages []core.Message) {
			for _, m := range messages {
				printMessage(room, m)
			}
		},
		Message: func(room string, msg core.Message) {
			printMessage(room, msg)
		},
		Custom: func(room string, msg core.Message) {
			printMessage(room, msg)
		},
		Joined: func(room, user string, you bool) {
			fmt.Printf("[%s] %s joined\n", room, displayName(user, you))
		},
		Parted: func(room, user string, you bool) {
			fmt.Printf("[%s] %s left\n", room, displayName(user, you))
		},
	}
}

func printMessage(room string, m core.Message) {
	author := displayName(m.Author, m.Self)
	switch m.Kind {
	case core.MessageCustom:
		fmt.Printf("[%s] %s: /%s=%s\n", room, author, m.Command, m.Payload)
	default:
		fmt.Printf("[%s] %s: %s\n", room, author, m.Body)
	}
}

func displayName(name string, you bool) string {
	if you {
		return name + " (you)"
	}
	return name
}
