package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/arcadianet/arcadia/internal/core"
	"github.com/arcadianet/arcadia/internal/core/data"
	"github.com/arcadianet/arcadia/internal/lobby"
	"github.com/arcadianet/arcadia/internal/peer"
	"github.com/arcadianet/arcadia/internal/room"
	"github.com/arcadianet/arcadia/internal/spawn"
)

// frontend is the HTTP front door for the server. It upgrades player
// connections to websockets and feeds their messages to the dispatcher,
// and exposes the REST projections used by the server browser, the spawned
// game servers' registration handshake, and match history.
type frontend struct {
	Config     *core.Config
	Logger     *logrus.Logger
	Dispatcher *lobby.Dispatcher
	Pool       *spawn.Pool
	Rooms      *room.Registry
	DB         *gorm.DB

	upgrader websocket.Upgrader
	server   *http.Server
}

// Start binds the HTTP listener and spins off the serving loop in its own
// goroutine, added to the WaitGroup. Context cancellation stops the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	router := mux.NewRouter()
	router.HandleFunc("/ws", f.handleSocket)
	router.HandleFunc("/v1/games", f.handleListGames).Methods("GET")
	router.HandleFunc("/v1/matches", f.handleListMatches).Methods("GET")
	router.HandleFunc("/v1/rooms", f.handleRegisterRoom).Methods("POST")
	router.HandleFunc("/v1/rooms/{id}", f.handleDestroyRoom).Methods("DELETE")
	router.HandleFunc("/v1/spawns/{id}/finalize", f.handleFinalizeSpawn).Methods("POST")

	addr := f.Config.WebAddress()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", addr, err)
	}

	f.server = &http.Server{Handler: router}

	wg.Add(1)
	go func() {
		defer wg.Done()

		f.Logger.Infof("waiting for requests on %s", addr)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = f.server.Shutdown(shutdownCtx)
		}()

		if err := f.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			f.Logger.Errorf("http server exited: %v", err)
		}
	}()
	return nil
}

// handleSocket upgrades a player connection and pumps its messages into
// the dispatcher until the connection drops.
func (f *frontend) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.Logger.Warnf("websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	p := peer.New(conn, f.Logger)
	f.Logger.Infof("accepted connection from %s (peer %d)", p.RemoteAddr(), p.ID())
	defer p.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			f.Logger.Infof("peer %d disconnected: %v", p.ID(), err)
			return
		}
		if err := f.Dispatcher.Handle(r.Context(), p, message); err != nil {
			f.Logger.Warnf("error handling message from peer %d: %v", p.ID(), err)
		}
	}
}

func (f *frontend) handleListGames(w http.ResponseWriter, _ *http.Request) {
	f.writeJSON(w, http.StatusOK, f.Dispatcher.GameEntries())
}

func (f *frontend) handleListMatches(w http.ResponseWriter, _ *http.Request) {
	records, err := data.RecentMatches(f.DB, 50)
	if err != nil {
		f.Logger.Errorf("error listing matches: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	f.writeJSON(w, http.StatusOK, records)
}

type registerRoomRequest struct {
	TaskID     uint32            `json:"task_id"`
	Address    string            `json:"address"`
	Port       int               `json:"port"`
	Properties map[string]string `json:"properties"`
}

// handleRegisterRoom is called by a spawned game server once it is
// reachable, before it finalizes its spawn task.
func (f *frontend) handleRegisterRoom(w http.ResponseWriter, r *http.Request) {
	var req registerRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed room registration", http.StatusBadRequest)
		return
	}
	if req.Address == "" || req.Port == 0 {
		http.Error(w, "address and port are required", http.StatusBadRequest)
		return
	}

	registered := f.Rooms.Register(req.TaskID, req.Address, req.Port, req.Properties)
	f.writeJSON(w, http.StatusOK, map[string]uint32{"room_id": registered.ID})
}

func (f *frontend) handleDestroyRoom(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "malformed room id", http.StatusBadRequest)
		return
	}
	f.Rooms.Destroy(uint32(id))
	w.WriteHeader(http.StatusNoContent)
}

// handleFinalizeSpawn is the completion handshake from a spawned process:
// the posted payload (including the registered room id) is attached to the
// task and its consumers are notified.
func (f *frontend) handleFinalizeSpawn(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "malformed task id", http.StatusBadRequest)
		return
	}

	var payload map[string]string
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "malformed finalization payload", http.StatusBadRequest)
		return
	}

	f.Pool.FinalizeTask(uint32(id), payload)
	w.WriteHeader(http.StatusNoContent)
}

func (f *frontend) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.Logger.Warnf("error writing response: %v", err)
	}
}
