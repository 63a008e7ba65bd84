// Command chat-client is a small terminal client for the chat service. It
// logs in, opens the realtime connection, and offers a line-based command
// interface over one conversation at a time.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"direct-chat/internal/client"
	"direct-chat/internal/domain"
	"direct-chat/internal/observability"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "chat server base URL")
	username := flag.String("username", "", "account username")
	password := flag.String("password", "", "account password")
	register := flag.Bool("register", false, "register the account before logging in")
	email := flag.String("email", "", "email address, required with -register")
	flag.Parse()

	observability.InitLogger("warn", "text")

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: chat-client -username <name> -password <pass> [-server url] [-register -email addr]")
		os.Exit(1)
	}

	ctx := context.Background()
	api := client.NewAPI(*serverURL)

	if *register {
		if *email == "" {
			fmt.Fprintln(os.Stderr, "-register requires -email")
			os.Exit(1)
		}
		if _, err := api.Register(ctx, *username, *email, *password); err != nil {
			fmt.Fprintf(os.Stderr, "registration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("account created")
	}

	me, err := api.Login(ctx, *username, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("logged in as %s\n", me.Username)

	wsURL := "ws" + strings.TrimPrefix(*serverURL, "http") + "/ws"
	session := client.NewSession(api, wsURL)
	session.SetOnChange(func() { render(session, me.ID) })

	if err := session.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "realtime connection failed: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	fmt.Println("connected. commands: /users /online /open <user> /close /edit <id> <text> /delete <id> /quit")
	fmt.Println("anything else is sent as a message to the open conversation")

	repl(ctx, api, session, me.ID)

	if err := api.Logout(ctx); err != nil {
		slog.Warn("logout failed", slog.String("error", err.Error()))
	}
}

func repl(ctx context.Context, api *client.API, session *client.Session, selfID string) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return

		case line == "/users":
			users, err := api.Users(ctx)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			for _, user := range users {
				fmt.Printf("  %s  %s\n", user.ID, user.Username)
			}

		case line == "/online":
			for _, id := range session.OnlineUsers() {
				fmt.Printf("  %s\n", id)
			}

		case strings.HasPrefix(line, "/open "):
			target := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			otherID, err := resolveUser(ctx, api, target)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			history, err := session.OpenConversation(ctx, otherID)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Printf("conversation with %s (%d messages)\n", target, len(history))
			for _, msg := range history {
				printMessage(msg, selfID)
			}

		case line == "/close":
			session.CloseConversation()
			fmt.Println("conversation closed")

		case strings.HasPrefix(line, "/edit "):
			parts := strings.SplitN(strings.TrimPrefix(line, "/edit "), " ", 2)
			if len(parts) != 2 {
				fmt.Println("usage: /edit <message-id> <new text>")
				continue
			}
			if _, err := session.Edit(ctx, parts[0], parts[1]); err != nil {
				fmt.Printf("error: %v\n", err)
			}

		case strings.HasPrefix(line, "/delete "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/delete "))
			if _, err := session.Delete(ctx, id); err != nil {
				fmt.Printf("error: %v\n", err)
			}

		case strings.HasPrefix(line, "/"):
			fmt.Println("unknown command")

		default:
			if _, err := session.Send(ctx, line, ""); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}

// resolveUser accepts either a user ID or a username
func resolveUser(ctx context.Context, api *client.API, target string) (string, error) {
	users, err := api.Users(ctx)
	if err != nil {
		return "", err
	}
	for _, user := range users {
		if user.ID == target || user.Username == target {
			return user.ID, nil
		}
	}
	return "", fmt.Errorf("no such user: %s", target)
}

// render redraws the open conversation after a realtime event
func render(session *client.Session, selfID string) {
	messages := session.Messages()
	fmt.Printf("\r\033[K")
	if len(messages) > 0 {
		printMessage(messages[len(messages)-1], selfID)
	}
	fmt.Print("> ")
}

func printMessage(msg *domain.Message, selfID string) {
	who := "them"
	if msg.SenderID == selfID {
		who = "me"
	}
	edited := ""
	if msg.IsEdited {
		edited = " (edited)"
	}
	body := msg.Text
	if body == "" && msg.ImageURL != "" {
		body = "[image] " + msg.ImageURL
	}
	fmt.Printf("  [%s] %s: %s%s\n", msg.ID, who, body, edited)
}
