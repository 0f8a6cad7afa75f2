// Package internal wires the server's components together.
package internal

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/arcadianet/arcadia/internal/core"
	"github.com/arcadianet/arcadia/internal/core/data"
	"github.com/arcadianet/arcadia/internal/core/debug"
	"github.com/arcadianet/arcadia/internal/lobby"
	"github.com/arcadianet/arcadia/internal/protocol"
	"github.com/arcadianet/arcadia/internal/room"
	"github.com/arcadianet/arcadia/internal/spawn"
)

// defaultFactoryID is the factory used when clients do not ask for a
// specific lobby configuration.
const defaultFactoryID = "default"

// Controller is the main entrypoint for the server. It's responsible for
// initializing shared resources (database, logging, the spawner pool and
// room registry), declaring the request dispatcher, and launching the
// frontend.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	wg     sync.WaitGroup

	db         *gorm.DB
	pool       *spawn.Pool
	rooms      *room.Registry
	dispatcher *lobby.Dispatcher
}

func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by all components.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	if c.Config.Debugging.PprofEnabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	c.db, err = data.Initialize(c.Config.Database.Filename, false)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer func() {
		if err := data.Shutdown(c.db); err != nil {
			c.logger.Errorf("error closing database: %v", err)
		}
	}()

	c.pool = spawn.NewPool(c.logger)
	for _, sc := range c.Config.SpawnServer.Spawners {
		local := spawn.NewLocalSpawner(
			ctx, sc.ID, sc.Region, sc.Command, sc.Args, sc.BasePort, sc.MaxTasks, c.logger,
		)
		c.pool.RegisterSpawner(local.Spawner())
	}

	c.rooms = room.NewRegistry(c.accessTokenKey(), c.logger)

	c.dispatcher = lobby.NewDispatcher(c.logger, c.pool, c.rooms, c.recordMatch)
	c.dispatcher.RegisterFactory(defaultFactoryID, c.defaultLobbyFactory)

	f := &frontend{
		Config:     c.Config,
		Logger:     c.logger,
		Dispatcher: c.dispatcher,
		Pool:       c.pool,
		Rooms:      c.rooms,
		DB:         c.db,
	}
	if err := f.Start(ctx, &c.wg); err != nil {
		return fmt.Errorf("error starting frontend: %w", err)
	}

	c.wg.Wait()
	return nil
}

// defaultLobbyFactory builds lobbies from the configured team layout and
// feature toggles.
func (c *Controller) defaultLobbyFactory(id uint32, props map[string]string, deps lobby.Deps) (*lobby.Lobby, error) {
	cfg := c.Config.LobbyServer

	name := props["name"]
	if name == "" {
		name = fmt.Sprintf("Lobby %d", id)
	}

	teams := make([]lobby.TeamOptions, 0, len(cfg.Teams))
	for _, t := range cfg.Teams {
		teams = append(teams, lobby.TeamOptions{
			Name: t.Name, MinPlayers: t.MinPlayers, MaxPlayers: t.MaxPlayers,
		})
	}

	controls := make([]protocol.PropertyControl, 0, len(cfg.Controls))
	for _, ctl := range cfg.Controls {
		controls = append(controls, protocol.PropertyControl{
			Key: ctl.Key, Label: ctl.Label, Options: ctl.Options,
		})
	}

	opts := lobby.Options{
		Name:                name,
		GameType:            cfg.DefaultGameType,
		Properties:          props,
		MinPlayers:          cfg.MinPlayers,
		Teams:               teams,
		Controls:            controls,
		EnableManualStart:   cfg.EnableManualStart,
		EnableReadySystem:   cfg.EnableReadySystem,
		EnableTeamSwitching: cfg.EnableTeamSwitching,
		EnableGameMasters:   cfg.EnableGameMasters,
		PlayAgain:           cfg.PlayAgain,
		KeepAliveWhenEmpty:  cfg.KeepAliveWhenEmpty,
		AllowJoiningMidGame: cfg.AllowJoiningMidGame,
		StartWhenAllReady:   cfg.StartWhenAllReady,
	}

	return lobby.New(id, opts, deps), nil
}

func (c *Controller) recordMatch(result lobby.MatchResult) {
	record := &data.MatchRecord{
		LobbyID:     result.LobbyID,
		LobbyName:   result.Name,
		GameType:    result.GameType,
		MemberCount: result.MemberCount,
		Outcome:     result.Outcome,
	}
	if err := data.CreateMatchRecord(c.db, record); err != nil {
		c.logger.Errorf("error recording match for lobby %d: %v", result.LobbyID, err)
	}
}

// accessTokenKey returns the configured room token signing key, generating
// an ephemeral one when unset. A generated key means issued tokens do not
// survive a restart, which is acceptable for their short TTL.
func (c *Controller) accessTokenKey() []byte {
	if key := c.Config.LobbyServer.AccessTokenKey; key != "" {
		return []byte(key)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		c.logger.Warnf("error generating access token key: %v", err)
	}
	c.logger.Info("no access_token_key configured; generated an ephemeral signing key")
	return key
}
