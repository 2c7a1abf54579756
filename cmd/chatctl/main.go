// chatctl is a terminal client for the chat backend. It drives the REST
// API and can tail the live WebSocket event stream, which makes it handy
// for poking at a running server without a browser.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ahmedmirza994/whatsapp-sub001/client"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		color.Error.Println(err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	flags := flag.NewFlagSet("chatctl", flag.ContinueOnError)
	server := flags.String("server", envOr("CHAT_SERVER_ADDR", "http://localhost:8080"), "Server base URL")
	token := flags.String("token", os.Getenv("CHAT_TOKEN"), "Session token (from login)")
	if err := flags.Parse(args); err != nil {
		return exitUsage, nil
	}
	if flags.NArg() == 0 {
		usage()
		return exitUsage, nil
	}

	c := client.New(*server)
	if *token != "" {
		c.SetToken(*token)
	}

	command, rest := flags.Arg(0), flags.Args()[1:]
	switch command {
	case "signup":
		return signup(c, rest)
	case "login":
		return login(c, rest)
	case "me":
		return me(c)
	case "users":
		return searchUsers(c, rest)
	case "conversations":
		return listConversations(c)
	case "create":
		return createConversation(c, rest)
	case "send":
		return sendMessage(c, rest)
	case "history":
		return history(c, rest)
	case "search":
		return searchMessages(c, rest)
	case "watch":
		return watch(c, rest)
	default:
		usage()
		return exitUsage, fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: chatctl [-server URL] [-token TOKEN] <command> [args]

Commands:
  signup <name> <email> <password>   Create an account and print a token
  login <email> <password>           Print a session token
  me                                 Show the authenticated account
  users <query>                      Search users by name or email
  conversations                      List your conversations
  create <userID> [userID...]        Start a conversation with those users
  send <conversationID> <text>       Send a message
  history <conversationID> [cursor]  Show messages, newest first
  search <conversationID> <query>    Full-text search in a conversation
  watch <conversationID>             Tail the live event stream`)
}

func signup(c *client.Client, args []string) (int, error) {
	if len(args) != 3 {
		return exitUsage, fmt.Errorf("signup needs <name> <email> <password>")
	}
	session, err := c.Signup(args[0], args[1], args[2])
	if err != nil {
		return exitRuntime, err
	}
	color.Success.Printf("Account created for %s\n", session.User.Email)
	fmt.Println(session.Token)
	return exitOK, nil
}

func login(c *client.Client, args []string) (int, error) {
	if len(args) != 2 {
		return exitUsage, fmt.Errorf("login needs <email> <password>")
	}
	session, err := c.Login(args[0], args[1])
	if err != nil {
		return exitRuntime, err
	}
	fmt.Println(session.Token)
	return exitOK, nil
}

func me(c *client.Client) (int, error) {
	user, err := c.Me()
	if err != nil {
		return exitRuntime, err
	}
	table := newTable([]string{"ID", "Name", "Email", "Created"})
	table.Append([]string{shortID(user.ID), user.Name, user.Email, user.CreatedAt.Format("2006-01-02 15:04")})
	table.Render()
	return exitOK, nil
}

func searchUsers(c *client.Client, args []string) (int, error) {
	if len(args) != 1 {
		return exitUsage, fmt.Errorf("users needs <query>")
	}
	users, err := c.SearchUsers(args[0])
	if err != nil {
		return exitRuntime, err
	}
	table := newTable([]string{"ID", "Name", "Email"})
	for _, user := range users {
		table.Append([]string{user.ID.String(), user.Name, user.Email})
	}
	table.Render()
	return exitOK, nil
}

func listConversations(c *client.Client) (int, error) {
	conversations, err := c.ListConversations()
	if err != nil {
		return exitRuntime, err
	}
	table := newTable([]string{"ID", "Participants", "Updated"})
	for _, conversation := range conversations {
		var names []string
		for _, p := range conversation.Participants {
			names = append(names, p.Name)
		}
		table.Append([]string{
			conversation.ID.String(),
			strings.Join(names, ", "),
			conversation.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return exitOK, nil
}

func createConversation(c *client.Client, args []string) (int, error) {
	if len(args) == 0 {
		return exitUsage, fmt.Errorf("create needs at least one <userID>")
	}
	ids := make([]uuid.UUID, 0, len(args))
	for _, raw := range args {
		id, err := uuid.Parse(raw)
		if err != nil {
			return exitUsage, fmt.Errorf("invalid user id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	conversation, err := c.CreateConversation(ids)
	if err != nil {
		return exitRuntime, err
	}
	color.Success.Println("Conversation created")
	fmt.Println(conversation.ID)
	return exitOK, nil
}

func sendMessage(c *client.Client, args []string) (int, error) {
	if len(args) < 2 {
		return exitUsage, fmt.Errorf("send needs <conversationID> <text>")
	}
	conversationID, err := uuid.Parse(args[0])
	if err != nil {
		return exitUsage, fmt.Errorf("invalid conversation id: %w", err)
	}
	message, err := c.SendMessage(conversationID, strings.Join(args[1:], " "))
	if err != nil {
		return exitRuntime, err
	}
	color.Success.Printf("Sent %s\n", shortID(message.ID))
	return exitOK, nil
}

func history(c *client.Client, args []string) (int, error) {
	if len(args) < 1 {
		return exitUsage, fmt.Errorf("history needs <conversationID> [cursor]")
	}
	conversationID, err := uuid.Parse(args[0])
	if err != nil {
		return exitUsage, fmt.Errorf("invalid conversation id: %w", err)
	}
	var cursor *string
	if len(args) > 1 {
		cursor = &args[1]
	}
	page, err := c.History(conversationID, cursor)
	if err != nil {
		return exitRuntime, err
	}
	printMessages(page.Messages)
	if page.Cursor != nil {
		fmt.Printf("next cursor: %s\n", *page.Cursor)
	}
	return exitOK, nil
}

func searchMessages(c *client.Client, args []string) (int, error) {
	if len(args) < 2 {
		return exitUsage, fmt.Errorf("search needs <conversationID> <query>")
	}
	conversationID, err := uuid.Parse(args[0])
	if err != nil {
		return exitUsage, fmt.Errorf("invalid conversation id: %w", err)
	}
	messages, err := c.SearchMessages(conversationID, strings.Join(args[1:], " "))
	if err != nil {
		return exitRuntime, err
	}
	printMessages(messages)
	return exitOK, nil
}

// watch subscribes to one conversation and prints every envelope until
// the stream ends (Ctrl+C or server shutdown).
func watch(c *client.Client, args []string) (int, error) {
	if len(args) != 1 {
		return exitUsage, fmt.Errorf("watch needs <conversationID>")
	}
	conversationID, err := uuid.Parse(args[0])
	if err != nil {
		return exitUsage, fmt.Errorf("invalid conversation id: %w", err)
	}

	stream, err := c.Connect()
	if err != nil {
		return exitRuntime, err
	}
	defer stream.Close()

	if err := stream.Subscribe(conversationID); err != nil {
		return exitRuntime, err
	}
	color.Info.Printf("Watching %s (Ctrl+C to quit)...\n", shortID(conversationID))

	for {
		env, err := stream.Read()
		if err != nil {
			return exitOK, nil
		}
		color.Comment.Printf("[%s] ", env.Type)
		fmt.Println(string(env.Payload))
	}
}

func printMessages(messages []client.Message) {
	table := newTable([]string{"Time", "Sender", "Content", "ID"})
	for _, message := range messages {
		table.Append([]string{
			message.SentAt.Format("15:04:05"),
			message.SenderName,
			message.Content,
			shortID(message.ID),
		})
	}
	table.Render()
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
