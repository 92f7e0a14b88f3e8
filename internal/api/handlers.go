package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"github.com/gosocial/realtime/internal/admission"
	"github.com/gosocial/realtime/internal/server"
)

const acquireTimeout = 5 * time.Second

func (a *App) writeJson(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			a.log.Println("error encoding response:", err)
		}
	}
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.db.Ping(); err != nil {
		a.log.Println("health check:", err)
		errResp := NewServiceUnavailableError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

// serveWs admits the connection, upgrades it and attaches the user to the
// subscriber registry. The admission slot is held for the lifetime of the
// websocket and released when the read pump exits.
func (a *App) serveWs(w http.ResponseWriter, r *http.Request) {
	address, ok := Address(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := shortid.Generate()
	if err != nil {
		a.log.Println("generate connection id:", err)
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// one admission slot per socket, so a second device from the same
	// address takes its own slot
	connId := fmt.Sprintf("%s:%s", address, sid)

	acquireCtx, cancel := context.WithTimeout(r.Context(), acquireTimeout)
	defer cancel()

	if err := a.pool.Acquire(acquireCtx, connId); err != nil {
		a.log.Printf("acquire connection for %q: %v", address, err)
		var errResp *ApiError
		if errors.Is(err, admission.ErrAlreadyAcquired) {
			errResp = NewConflictError()
		} else {
			errResp = NewServiceUnavailableError()
		}
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(a.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Println("error upgrading connection:", err)
		if err := a.pool.Release(connId); err != nil {
			a.log.Printf("release connection %q: %v", connId, err)
		}
		return
	}

	onActivity := func() {
		if err := a.pool.UpdateActivity(connId); err != nil {
			a.log.Printf("update activity for %q: %v", connId, err)
		}
	}

	client := server.NewClient(address, conn, a.registry, a.calls, a.resolver, a.log, onActivity)

	go client.Write()
	go func() {
		client.Read()
		if err := a.pool.Release(connId); err != nil {
			a.log.Printf("release connection %q: %v", connId, err)
		}
	}()
}
