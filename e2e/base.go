package e2e

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"github.com/ahmedmirza994/whatsapp-sub001/client"
)

// BaseSuite carries the shared configuration of every end-to-end
// scenario and skips the whole suite when no server address is set, so
// these tests never fail a plain `go test ./...` run.
type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr == "" {
		s.T().Skip("CHAT_SERVER_ADDR not set, skipping end-to-end scenarios")
	}
}

// Step prints a colorized header so scenario phases stand out in logs.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Actor is one authenticated participant of a scenario.
type Actor struct {
	Client  *client.Client
	Session client.Session
}

// NewActor signs up a fresh throwaway account against the target server.
// Emails carry a UUID so scenarios can run repeatedly against the same
// database without colliding.
func (s *BaseSuite) NewActor(name string) *Actor {
	c := client.New(s.Config.ServerAddr)
	email := fmt.Sprintf("%s-%s@e2e.local", name, uuid.New())
	session, err := c.Signup(name, email, "Str0ngPassw0rd")
	s.Require().NoError(err, "Failed to sign up actor "+name)

	if s.Config.DebugJSON {
		s.T().Logf("Actor %s: id=%s email=%s", name, session.User.ID, email)
	}
	return &Actor{Client: c, Session: session}
}

// AwaitEnvelope reads from the stream until an envelope of the wanted
// type arrives or the deadline passes. Other envelope kinds (presence,
// typing) are logged and skipped.
func (s *BaseSuite) AwaitEnvelope(stream *client.Stream, wanted string, timeout time.Duration) client.Envelope {
	type result struct {
		env client.Envelope
		err error
	}
	results := make(chan result, 1)
	go func() {
		for {
			env, err := stream.Read()
			if err != nil {
				results <- result{err: err}
				return
			}
			if env.Type == wanted {
				results <- result{env: env}
				return
			}
			s.T().Logf("Skipping envelope %s while waiting for %s", env.Type, wanted)
		}
	}()

	select {
	case r := <-results:
		s.Require().NoError(r.err, "Stream closed while waiting for "+wanted)
		return r.env
	case <-time.After(timeout):
		s.FailNowf("Timeout", "No %s envelope within %v", wanted, timeout)
		return client.Envelope{}
	}
}
