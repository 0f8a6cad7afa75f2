package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// server components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// IP or hostname advertised to clients and spawned game servers.
	ExternalIP string `mapstructure:"external_ip"`
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	Web struct {
		// Port for the HTTP surface (websocket endpoint and REST projections).
		HTTPPort int `mapstructure:"http_port"`
	} `mapstructure:"web"`

	Database struct {
		// Path of the SQLite database file holding match history.
		Filename string `mapstructure:"filename"`
	} `mapstructure:"database"`

	LobbyServer struct {
		// Key for signing room access tokens. Generated at startup if blank.
		AccessTokenKey string `mapstructure:"access_token_key"`
		// Default game type tag for lobbies created by the default factory.
		DefaultGameType string `mapstructure:"default_game_type"`
		// Minimum total population required to start a game.
		MinPlayers int `mapstructure:"min_players"`
		// Teams declared for lobbies built by the default factory.
		Teams []TeamConfig `mapstructure:"teams"`
		// Lobby settings advertised to clients as changeable from the lobby
		// screen, in declaration order.
		Controls []ControlConfig `mapstructure:"controls"`

		EnableManualStart   bool `mapstructure:"enable_manual_start"`
		EnableReadySystem   bool `mapstructure:"enable_ready_system"`
		EnableTeamSwitching bool `mapstructure:"enable_team_switching"`
		EnableGameMasters   bool `mapstructure:"enable_game_masters"`
		PlayAgain           bool `mapstructure:"play_again"`
		KeepAliveWhenEmpty  bool `mapstructure:"keep_alive_when_empty"`
		AllowJoiningMidGame bool `mapstructure:"allow_joining_mid_game"`
		StartWhenAllReady   bool `mapstructure:"start_when_all_ready"`
	} `mapstructure:"lobby_server"`

	SpawnServer struct {
		// Spawner workers available for launching game server processes.
		Spawners []SpawnerConfig `mapstructure:"spawners"`
	} `mapstructure:"spawn_server"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
	} `mapstructure:"debugging"`
}

type TeamConfig struct {
	Name       string `mapstructure:"name"`
	MinPlayers int    `mapstructure:"min_players"`
	MaxPlayers int    `mapstructure:"max_players"`
}

type ControlConfig struct {
	Key     string   `mapstructure:"key"`
	Label   string   `mapstructure:"label"`
	Options []string `mapstructure:"options"`
}

type SpawnerConfig struct {
	ID       string   `mapstructure:"id"`
	Region   string   `mapstructure:"region"`
	Command  string   `mapstructure:"command"`
	Args     []string `mapstructure:"args"`
	BasePort int      `mapstructure:"base_port"`
	MaxTasks int      `mapstructure:"max_tasks"`
}

const envVarPrefix = "ARCADIA"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s", configPath)
		} else {
			fmt.Printf("error reading config file: %v", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, web.http_port can be set using: <envVarPrefix>_WEB_HTTP_PORT
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v", err)
		os.Exit(1)
	}
	return config
}

// WebAddress returns the listen address of the HTTP surface.
func (c *Config) WebAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Web.HTTPPort)
}

// ExternalAddress returns the address advertised to clients, falling back
// to the listen hostname.
func (c *Config) ExternalAddress() string {
	if c.ExternalIP != "" {
		return c.ExternalIP
	}
	return c.Hostname
}
