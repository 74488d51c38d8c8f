// Package surface provides the embedded surfaces a session can drive: a JavaScript flow run
// in-process, loaded from a string, a file or a flow host, and a remote flow reached over a
// websocket.
package surface

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/tansive/flowbridge/internal/common/httpclient"
	"github.com/tansive/flowbridge/internal/common/jsruntime"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
)

// Source yields the JavaScript of a flow.
type Source interface {
	Load(ctx context.Context) (name string, code string, err error)
}

// Inline is a flow given as source text.
type Inline struct {
	Name string
	Code string
}

func (s Inline) Load(context.Context) (string, string, error) {
	return s.Name, s.Code, nil
}

// File reads a flow from disk.
type File string

func (f File) Load(context.Context) (string, string, error) {
	b, err := os.ReadFile(string(f))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", ErrFlowNotFound.Msg(string(f))
		}
		return "", "", ErrFlowLoad.Err(err)
	}
	name := strings.TrimSuffix(filepath.Base(string(f)), filepath.Ext(string(f)))
	return name, string(b), nil
}

const (
	defaultFetchAttempts = 3
	defaultFetchDelay    = 200 * time.Millisecond
)

// Remote fetches a flow from a flow host. Client carries the bearer token. Transport failures
// are retried with backoff; error responses from the host are not.
type Remote struct {
	URL      string
	Client   *httpclient.Client
	Attempts uint          // defaults to 3
	Delay    time.Duration // initial backoff, defaults to 200ms
}

func (r Remote) Load(ctx context.Context) (string, string, error) {
	client := r.Client
	if client == nil {
		client = httpclient.NewClient(httpclient.ClientOptions{})
	}
	attempts, delay := r.Attempts, r.Delay
	if attempts == 0 {
		attempts = defaultFetchAttempts
	}
	if delay <= 0 {
		delay = defaultFetchDelay
	}

	var body []byte
	err := retry.Do(func() error {
		var err error
		body, err = client.Get(ctx, r.URL)
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			return retry.Unrecoverable(err)
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			switch {
			case httpErr.Unauthorized():
				return "", "", taxonomy.ErrUnauthorized.Msg(httpErr.Message)
			case httpErr.StatusCode == 404:
				return "", "", ErrFlowNotFound.Msg(r.URL)
			}
			return "", "", ErrFlowLoad.Err(httpErr)
		}
		// transport failures keep their cause so they classify as network errors
		return "", "", err
	}
	name := strings.TrimSuffix(filepath.Base(r.URL), ".js")
	return name, string(body), nil
}

// Script returns a surface that loads src when the session opens the bridge and runs it with
// the JavaScript runtime.
func Script(src Source, logger zerolog.Logger) bridge.Surface {
	return bridge.SurfaceFunc(func(ctx context.Context, directives <-chan []byte, post func([]byte)) error {
		if src == nil {
			return ErrNoSource
		}
		name, code, err := src.Load(ctx)
		if err != nil {
			return err
		}
		logger.Debug().Str("flow", name).Int("bytes", len(code)).Msg("flow script loaded")
		flow, aerr := jsruntime.New(name, code, jsruntime.Options{
			Logger:          logger,
			ProtocolVersion: bridge.ProtocolVersion,
		})
		if aerr != nil {
			return ErrFlowCompile.Err(aerr)
		}
		return flow.Run(ctx, directives, post)
	})
}
