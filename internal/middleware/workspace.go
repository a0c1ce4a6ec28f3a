package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/notesummarizer/internal/workspace"
)

const WorkspaceCookieName = "workspace"

type contextKey string

const contextKeyWorkspace contextKey = "workspace"

// WorkspaceStore creates and looks up workspaces.
type WorkspaceStore interface {
	Create(ctx context.Context) (*workspace.Workspace, error)
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
}

// TokenSealer protects the workspace ID stored in the cookie.
type TokenSealer interface {
	Seal(value string) (string, error)
	Open(token string) (string, error)
}

// Workspace resolves the caller's workspace from the sealed cookie and puts
// it in the request context. A missing, tampered or expired cookie gets a
// fresh workspace and a new cookie.
func Workspace(store WorkspaceStore, sealer TokenSealer, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ws := lookupWorkspace(r, store, sealer); ws != nil {
				next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), ws)))
				return
			}

			ws, err := store.Create(r.Context())
			if err != nil {
				slog.Error("workspace: create failed", "err", err)
				unavailable(w, r)
				return
			}
			token, err := sealer.Seal(ws.ID())
			if err != nil {
				slog.Error("workspace: seal cookie failed", "err", err)
				unavailable(w, r)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     WorkspaceCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), ws)))
		})
	}
}

func lookupWorkspace(r *http.Request, store WorkspaceStore, sealer TokenSealer) *workspace.Workspace {
	cookie, err := r.Cookie(WorkspaceCookieName)
	if err != nil {
		return nil
	}
	id, err := sealer.Open(cookie.Value)
	if err != nil {
		slog.Debug("workspace: rejected cookie", "err", err)
		return nil
	}
	ws, err := store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Debug("workspace: unknown id", "workspace_id", id, "err", err)
		}
		return nil
	}
	return ws
}

func unavailable(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"service unavailable"}`))
		return
	}
	http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
}

// WorkspaceFromContext returns the workspace resolved by the Workspace
// middleware, or nil.
func WorkspaceFromContext(ctx context.Context) *workspace.Workspace {
	ws, _ := ctx.Value(contextKeyWorkspace).(*workspace.Workspace)
	return ws
}

// WithWorkspace returns a copy of ctx carrying ws.
func WithWorkspace(ctx context.Context, ws *workspace.Workspace) context.Context {
	return context.WithValue(ctx, contextKeyWorkspace, ws)
}
