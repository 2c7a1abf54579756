// Package client is a small Go client for the chat backend. It wraps the
// REST surface and the WebSocket event stream, and is shared by chatctl
// and the end-to-end scenarios.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Token returns the bearer credential of the current session, empty
// before Login or Signup succeeded.
func (c *Client) Token() string { return c.token }

// SetToken resumes a session from a previously issued credential.
func (c *Client) SetToken(token string) { c.token = token }

type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Participant struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

type Conversation struct {
	ID           uuid.UUID     `json:"id"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Participants []Participant `json:"participants"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       uuid.UUID `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt"`
}

type MessagePage struct {
	Messages []Message `json:"messages"`
	Cursor   *string   `json:"cursor,omitempty"`
}

// apiResponse mirrors the server's uniform reply envelope.
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) Signup(name, email, password string) (Session, error) {
	var session Session
	err := c.do(http.MethodPost, "/api/signup", map[string]string{
		"name": name, "email": email, "password": password,
	}, &session)
	if err != nil {
		return Session{}, err
	}
	c.token = session.Token
	return session, nil
}

func (c *Client) Login(email, password string) (Session, error) {
	var session Session
	err := c.do(http.MethodPost, "/api/login", map[string]string{
		"email": email, "password": password,
	}, &session)
	if err != nil {
		return Session{}, err
	}
	c.token = session.Token
	return session, nil
}

func (c *Client) Me() (User, error) {
	var user User
	err := c.do(http.MethodGet, "/api/me", nil, &user)
	return user, err
}

func (c *Client) SearchUsers(query string) ([]User, error) {
	var users []User
	err := c.do(http.MethodGet, "/api/users/search?q="+url.QueryEscape(query), nil, &users)
	return users, err
}

func (c *Client) CreateConversation(participantIDs []uuid.UUID) (Conversation, error) {
	var conversation Conversation
	err := c.do(http.MethodPost, "/api/conversations", map[string]any{
		"participantIds": participantIDs,
	}, &conversation)
	return conversation, err
}

func (c *Client) ListConversations() ([]Conversation, error) {
	var conversations []Conversation
	err := c.do(http.MethodGet, "/api/conversations", nil, &conversations)
	return conversations, err
}

func (c *Client) AddParticipant(conversationID, userID uuid.UUID) (Conversation, error) {
	var conversation Conversation
	err := c.do(http.MethodPost,
		fmt.Sprintf("/api/conversations/%s/participants", conversationID),
		map[string]any{"userId": userID}, &conversation)
	return conversation, err
}

func (c *Client) LeaveConversation(conversationID uuid.UUID) error {
	return c.do(http.MethodDelete,
		fmt.Sprintf("/api/conversations/%s/participants/me", conversationID), nil, nil)
}

func (c *Client) SendMessage(conversationID uuid.UUID, content string) (Message, error) {
	var message Message
	err := c.do(http.MethodPost,
		fmt.Sprintf("/api/conversations/%s/messages", conversationID),
		map[string]string{"content": content}, &message)
	return message, err
}

func (c *Client) History(conversationID uuid.UUID, cursor *string) (MessagePage, error) {
	path := fmt.Sprintf("/api/conversations/%s/messages", conversationID)
	if cursor != nil {
		path += "?cursor=" + url.QueryEscape(*cursor)
	}
	var page MessagePage
	err := c.do(http.MethodGet, path, nil, &page)
	return page, err
}

func (c *Client) DeleteMessage(conversationID, messageID uuid.UUID) error {
	return c.do(http.MethodDelete,
		fmt.Sprintf("/api/conversations/%s/messages/%s", conversationID, messageID), nil, nil)
}

func (c *Client) SearchMessages(conversationID uuid.UUID, query string) ([]Message, error) {
	var messages []Message
	err := c.do(http.MethodGet,
		fmt.Sprintf("/api/conversations/%s/messages/search?q=%s",
			conversationID, url.QueryEscape(query)), nil, &messages)
	return messages, err
}

func (c *Client) do(method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reply apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("decoding reply (%s): %w", resp.Status, err)
	}
	if !reply.Success {
		return fmt.Errorf("server returned %s: %s", resp.Status, reply.Error)
	}
	if out != nil && len(reply.Data) > 0 {
		return json.Unmarshal(reply.Data, out)
	}
	return nil
}

// Envelope is one frame of the push stream.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Stream is a live WebSocket session. Read blocks until the next
// envelope; Close ends the session.
type Stream struct {
	conn *websocket.Conn
}

// Connect opens the event stream. Browsers cannot set headers on a
// WebSocket handshake, so the credential travels as a query parameter;
// this client does the same to exercise that path.
func (c *Client) Connect() (*Stream, error) {
	wsURL, err := url.Parse(c.baseURL + "/api/ws")
	if err != nil {
		return nil, err
	}
	switch wsURL.Scheme {
	case "http":
		wsURL.Scheme = "ws"
	case "https":
		wsURL.Scheme = "wss"
	}
	query := wsURL.Query()
	query.Set("token", c.token)
	wsURL.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", wsURL.Host, err)
	}
	return &Stream{conn: conn}, nil
}

func (s *Stream) Read() (Envelope, error) {
	var env Envelope
	if err := s.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Subscribe attaches this session to a conversation's broadcast address.
func (s *Stream) Subscribe(conversationID uuid.UUID) error {
	return s.conn.WriteJSON(map[string]any{
		"action":         "subscribe",
		"conversationId": conversationID,
	})
}

func (s *Stream) Unsubscribe(conversationID uuid.UUID) error {
	return s.conn.WriteJSON(map[string]any{
		"action":         "unsubscribe",
		"conversationId": conversationID,
	})
}

func (s *Stream) Typing(conversationID uuid.UUID, isTyping bool) error {
	return s.conn.WriteJSON(map[string]any{
		"action":         "typing",
		"conversationId": conversationID,
		"isTyping":       isTyping,
	})
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
