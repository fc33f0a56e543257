package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/possync/possync/internal/service"
)

// maxRequestBody bounds command request bodies (1MB)
const maxRequestBody = 1 << 20

// commandFunc runs one command with its raw JSON input
type commandFunc func(ctx context.Context, svc service.Service, body []byte) (*service.Envelope, error)

var commands = map[string]commandFunc{
	"sync.full":            withInput(service.Service.SyncFull),
	"sync.pull":            withInput(service.Service.SyncPull),
	"sync.push":            withInput(service.Service.SyncPush),
	"sync.checkConnection": withoutInput(service.Service.CheckConnection),
	"sync.getStats":        withoutInput(service.Service.GetStats),
	"sync.configure":       withInput(service.Service.Configure),
	"sync.getConfig":       withoutInput(service.Service.GetConfig),
	"sync.getLog":          withInput(service.Service.GetLog),
	"sync.getConflicts":    withoutInput(service.Service.GetConflicts),
	"sync.resolveConflict": withInput(service.Service.ResolveConflict),
	"sync.cleanLog":        withInput(service.Service.CleanLog),
}

// Commands returns the names of all commands, sorted
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// withInput decodes the body into the command input. An empty body is the zero input.
func withInput[T any](call func(service.Service, context.Context, T) *service.Envelope) commandFunc {
	return func(ctx context.Context, svc service.Service, body []byte) (*service.Envelope, error) {
		var input T
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &input); err != nil {
				return nil, fmt.Errorf("invalid request body: %w", err)
			}
		}
		return call(svc, ctx, input), nil
	}
}

func withoutInput(call func(service.Service, context.Context) *service.Envelope) commandFunc {
	return func(ctx context.Context, svc service.Service, _ []byte) (*service.Envelope, error) {
		return call(svc, ctx), nil
	}
}

// CommandRouter creates a router for POST /{command}
func CommandRouter(svc service.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/{command}", commandHandler(svc))
	return r
}

// commandHandler runs a command. Handled failures are 200 responses carrying a
// failed envelope; only unknown commands and undecodable bodies are rejected.
func commandHandler(svc service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "command")
		run, ok := commands[name]
		if !ok {
			WriteJSONResponse(w, &service.Envelope{
				Error: fmt.Sprintf("unknown command %q", name),
				Code:  service.CodeNotFound,
			}, http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			status := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				status = http.StatusRequestEntityTooLarge
			}
			WriteJSONResponse(w, &service.Envelope{Error: err.Error(), Code: service.CodeValidation}, status)
			return
		}

		env, err := run(r.Context(), svc, body)
		if err != nil {
			WriteJSONResponse(w, &service.Envelope{Error: err.Error(), Code: service.CodeValidation}, http.StatusBadRequest)
			return
		}

		if !env.Success {
			slog.Debug("Command failed", "command", name, "code", env.Code, "error", env.Error)
		}
		WriteJSONResponse(w, env, http.StatusOK)
	}
}
