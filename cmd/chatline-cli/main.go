package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"chatline/pkg/client"
	"chatline/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env")
	server := flag.String("server", "http://127.0.0.1:4000", "chat server base URL")
	room := flag.Bool("room", false, "join the group room instead of direct chat")
	flag.Parse()
	logger.Init()

	if err := run(*server, *room); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(base string, room bool) error {
	ctx := context.Background()
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws"

	conn, err := client.Dial(ctx, wsURL)
	if err != nil {
		return err
	}
	rest := client.NewRESTClient(base, nil)
	c := client.New(conn, rest, client.Options{
		IdentityPath: identityPath(),
	})
	c.OnConnectionState(func(up bool) {
		if up {
			fmt.Println("* connected")
		} else {
			fmt.Println("* disconnected")
		}
	})
	c.Start()
	defer c.Close()

	in := bufio.NewScanner(os.Stdin)

	if saved, _ := client.LoadIdentity(identityPath()); saved != nil {
		fmt.Printf("welcome back, %s\n", saved.UserName)
		if err := c.Restore(*saved); err != nil {
			return err
		}
	} else if err := login(ctx, c, in); err != nil {
		return err
	}

	c.OnConversationChange(func() {
		msgs := c.Conversation()
		if len(msgs) == 0 {
			return
		}
		m := msgs[len(msgs)-1]
		if m.LocalEcho {
			return
		}
		fmt.Printf("<%s> %s\n", m.From, m.Body)
	})
	c.OnPeerTyping(func(active bool) {
		if active {
			fmt.Println("* peer is typing...")
		}
	})

	if room {
		if err := c.JoinRoom(); err != nil {
			return err
		}
		c.OnRosterUpdate(func(names []string) {
			fmt.Printf("* in room: %s\n", strings.Join(names, ", "))
		})
		fmt.Println("joined the room; type to chat")
	} else {
		if err := pickPeer(ctx, c, in); err != nil {
			return err
		}
		for _, m := range c.Conversation() {
			who := m.From
			if m.SendByYou {
				who = "you"
			}
			fmt.Printf("<%s> %s\n", who, m.Body)
		}
	}

	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "/quit" {
			return nil
		}
		if line == "" {
			continue
		}
		c.SetDraft(line)
		if err := c.Send(line); err != nil {
			var verr *client.ValidationError
			if errors.As(err, &verr) {
				fmt.Printf("! %s\n", verr.Reason)
				continue
			}
			return err
		}
		c.SetDraft("")
	}
	return in.Err()
}

func login(ctx context.Context, c *client.Client, in *bufio.Scanner) error {
	for {
		fmt.Print("name: ")
		if !in.Scan() {
			return in.Err()
		}
		name := strings.TrimSpace(in.Text())
		fmt.Print("password: ")
		if !in.Scan() {
			return in.Err()
		}
		pass := strings.TrimSpace(in.Text())

		err := c.Login(ctx, name, pass)
		if err == nil {
			return nil
		}
		var aerr *client.AuthError
		if errors.As(err, &aerr) {
			fmt.Printf("! %s\n", aerr.Message)
			continue
		}
		return err
	}
}

func pickPeer(ctx context.Context, c *client.Client, in *bufio.Scanner) error {
	users, err := c.Users(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return fmt.Errorf("nobody else is registered yet")
	}
	fmt.Println("contacts:")
	for i, u := range users {
		fmt.Printf("  %d) %s\n", i+1, u.Name)
	}
	for {
		fmt.Print("chat with: ")
		if !in.Scan() {
			return in.Err()
		}
		choice := strings.TrimSpace(in.Text())
		for i, u := range users {
			if choice == fmt.Sprint(i+1) || choice == u.Name {
				return c.SelectPeer(ctx, u.ID)
			}
		}
		fmt.Println("! no such contact")
	}
}

func identityPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "chatline", "identity.json")
}
