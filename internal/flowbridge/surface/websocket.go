package surface

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
)

const closeGrace = time.Second

// WebSocket is a surface hosted by a remote flow host. The start directive is sent as the
// first text frame; every text frame received afterwards is posted to the bridge.
type WebSocket struct {
	URL    string
	Token  string
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

func (w *WebSocket) Run(ctx context.Context, directives <-chan []byte, post func([]byte)) error {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	if w.Token != "" {
		header.Set("Authorization", "Bearer "+w.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, w.URL, header)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return taxonomy.ErrUnauthorized.Err(err)
			case http.StatusNotFound:
				return ErrFlowNotFound.Msg(w.URL)
			}
		}
		return errors.Wrap(err, "websocket dial failed")
	}
	defer conn.Close()
	w.Logger.Debug().Str("url", w.URL).Msg("websocket connected")

	var directive []byte
	select {
	case directive = <-directives:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := conn.WriteMessage(websocket.TextMessage, directive); err != nil {
		return taxonomy.ErrConnectionLost.Err(err)
	}

	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		_ = conn.Close()
	})
	defer stop()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseInternalServerErr {
				return ErrRemoteFlow.Msg(ce.Text)
			}
			return taxonomy.ErrConnectionLost.Err(err)
		}
		if kind == websocket.TextMessage {
			post(msg)
		}
	}
}

// Relay serves one flow over an accepted websocket connection. It reads the start directive
// from the first text frame, runs flow and writes every message it posts back as a text
// frame. It returns when the flow returns or the peer goes away. The caller closes conn.
func Relay(ctx context.Context, conn *websocket.Conn, flow bridge.Surface, logger zerolog.Logger) error {
	kind, directive, err := conn.ReadMessage()
	if err != nil {
		return errors.Wrap(err, "read start directive")
	}
	if kind != websocket.TextMessage {
		return ErrRelayDirective
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the peer closing the socket ends the flow
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	directives := make(chan []byte, 1)
	directives <- directive
	close(directives)

	var mu sync.Mutex
	post := func(msg []byte) {
		mu.Lock()
		defer mu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug().Err(err).Msg("unable to relay flow message")
		}
	}

	runErr := flow.Run(ctx, directives, post)
	if runErr != nil && ctx.Err() == nil {
		logger.Error().Err(runErr).Msg("flow ended with error")
	}

	mu.Lock()
	defer mu.Unlock()
	code := websocket.CloseNormalClosure
	if runErr != nil && ctx.Err() == nil {
		code = websocket.CloseInternalServerErr
	}
	text := ""
	if code == websocket.CloseInternalServerErr {
		text = "flow failed"
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(closeGrace))
	return runErr
}
