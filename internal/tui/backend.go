// Package tui is a terminal front end for the chat assistant. It talks either
// to an in-process session.Service or to a running server over its websocket.
package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"travelmate/internal/models"
	"travelmate/internal/session"
)

// Reply is one assistant answer
type Reply struct {
	Text   string
	Source string
}

// Backend answers chat messages for the terminal UI
type Backend interface {
	Greeting() string
	Send(ctx context.Context, message string) (Reply, error)
	Clear(ctx context.Context) (string, error)
	Close() error
}

// LocalBackend runs the chat flow in process with a single session
type LocalBackend struct {
	service   *session.Service
	sessionID string
}

func NewLocalBackend(service *session.Service) *LocalBackend {
	return &LocalBackend{service: service, sessionID: uuid.NewString()}
}

func (b *LocalBackend) Greeting() string { return b.service.Greeting() }

func (b *LocalBackend) Send(ctx context.Context, message string) (Reply, error) {
	res, err := b.service.Send(ctx, b.sessionID, message)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: res.Text, Source: res.Source}, nil
}

func (b *LocalBackend) Clear(ctx context.Context) (string, error) {
	return b.service.Clear(b.sessionID), nil
}

func (b *LocalBackend) Close() error { return nil }

// RemoteBackend talks to a server's /api/chat/ws endpoint. Requests are
// serialized because the protocol answers frames in order.
type RemoteBackend struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	greeting string
}

// DialRemote connects to serverURL (http, https, ws or wss) and waits for the greeting
func DialRemote(ctx context.Context, serverURL string, header http.Header) (*RemoteBackend, error) {
	u, err := websocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", u, err)
	}

	var hello models.Frame
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	if hello.Type != models.FrameGreeting {
		conn.CloseNow()
		return nil, fmt.Errorf("unexpected first frame %q", hello.Type)
	}

	return &RemoteBackend{conn: conn, greeting: hello.Content}, nil
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/api/chat/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/api/chat/ws"
	}
	return u.String(), nil
}

func (b *RemoteBackend) Greeting() string { return b.greeting }

func (b *RemoteBackend) roundTrip(ctx context.Context, out models.Frame, want string) (models.Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := wsjson.Write(ctx, b.conn, out); err != nil {
		return models.Frame{}, err
	}
	var in models.Frame
	if err := wsjson.Read(ctx, b.conn, &in); err != nil {
		return models.Frame{}, err
	}
	if in.Type == models.FrameError {
		return in, errors.New(in.Content)
	}
	if in.Type != want {
		return in, fmt.Errorf("unexpected frame %q", in.Type)
	}
	return in, nil
}

func (b *RemoteBackend) Send(ctx context.Context, message string) (Reply, error) {
	in, err := b.roundTrip(ctx, models.Frame{Type: models.FrameMessage, Content: message}, models.FrameReply)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: in.Content, Source: in.Source}, nil
}

func (b *RemoteBackend) Clear(ctx context.Context) (string, error) {
	in, err := b.roundTrip(ctx, models.Frame{Type: models.FrameClear}, models.FrameCleared)
	if err != nil {
		return "", err
	}
	return in.Content, nil
}

func (b *RemoteBackend) Close() error {
	return b.conn.Close(websocket.StatusNormalClosure, "bye")
}
