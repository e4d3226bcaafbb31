package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
	"golang.org/x/term"
)

// CodePrompter supplies the out-of-band authorization code shown by the player.
type CodePrompter interface {
	PromptCode(ctx context.Context) (string, error)
}

// TokenStore persists the token the player issues after a successful code.
type TokenStore interface {
	LoadToken(ctx context.Context, appName string) (string, error)
	SaveToken(ctx context.Context, appName, token string) error
}

// sendControl issues the connect call. A timeout is the normal outcome for an
// authorized session and is not reported.
func (s *Session) sendControl(code string) {
	token := code
	if token == "" {
		token = s.currentToken()
	}

	args := []any{s.opts.AppName}
	if token != "" {
		args = append(args, token)
	}

	call := s.Go(ChannelConnect, ChannelConnect, args, 0)
	go func() {
		<-call.Done
		switch {
		case call.Err == nil:
			logger.DebugF("Connect call answered: %s", string(call.Value))
		case errors.Is(call.Err, ErrTimeout):
			logger.Debug("Connect call unanswered, session is authorized")
		default:
			logger.ErrorF("Connect call failed, details: %v", call.Err)
		}
	}()
}

func (s *Session) currentToken() string {
	s.mu.Lock()
	token, ctx := s.token, s.ctx
	s.mu.Unlock()

	if s.opts.Tokens != nil {
		stored, err := s.opts.Tokens.LoadToken(ctx, s.opts.AppName)
		if err != nil {
			logger.DebugF("No stored token for %s: %v", s.opts.AppName, err)
		} else if stored != "" {
			return stored
		}
	}
	return token
}

// handleConnect reacts to the player's connect channel. It runs the prompt
// and the retry off the read loop.
func (s *Session) handleConnect(payload json.RawMessage) {
	var value string
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &value); err != nil {
			logger.WarnF("Dropping connect payload: %v, details: %v", ErrMalformedMessage, err)
			return
		}
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	go func() {
		code := ""
		switch {
		case value == codeRequired:
			if s.opts.Prompter == nil {
				logger.Error("Player requires an authorization code but no prompt is available")
				return
			}
			c, err := s.opts.Prompter.PromptCode(ctx)
			if err != nil {
				logger.ErrorF("Error occured while reading authorization code, details: %v", err)
				return
			}
			code = c
		case value != "":
			s.mu.Lock()
			s.token = value
			s.mu.Unlock()
			logger.InfoF("Your token is %s, save this value to remote.token", value)
			if s.opts.Tokens != nil {
				if err := s.opts.Tokens.SaveToken(ctx, s.opts.AppName, value); err != nil {
					logger.ErrorF("Error occured while saving token, details: %v", err)
				}
			}
		}
		s.sendControl(code)
	}()
}

// TerminalPrompter reads the code from an interactive terminal.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

func (p TerminalPrompter) PromptCode(ctx context.Context) (string, error) {
	if !term.IsTerminal(int(p.In.Fd())) {
		return "", errors.New("no terminal available for the authorization code prompt")
	}

	fmt.Fprint(p.Out, "Input 4-digit code from the player: ")
	result := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && line == "" {
			errCh <- err
			return
		}
		result <- strings.TrimSpace(line)
	}()

	select {
	case code := <-result:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
