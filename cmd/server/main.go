package main

import (
	"crypto/rand"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alvarojfjunior/planning-room/db"
	"github.com/alvarojfjunior/planning-room/engine"
	"github.com/alvarojfjunior/planning-room/handlers"
	"github.com/alvarojfjunior/planning-room/transport"
)

var rootCmd = &cobra.Command{
	Use:   "planning-room",
	Short: "Planning poker room server",
	Long: `Planning-room keeps every participant's view of an estimation
session consistent: host-gated room entry, vote collection, reveal on
full participation, and consensus-gated round advancement.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().StringP("listen", "l", "", "listen address (default :8080)")
	_ = viper.BindPFlag("listen", rootCmd.Flags().Lookup("listen"))
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	viper.SetDefault("listen", ":8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("token.ttl", "30m")
	viper.SetDefault("cleanup.interval", "30m")

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/planning-room")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PLANNING_ROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// tokenSecret returns the configured signing secret, or a process-local
// random one. Tokens signed with a generated secret do not survive a
// restart, which matches their bounded lifetime anyway.
func tokenSecret(log *slog.Logger) []byte {
	if s := viper.GetString("token.secret"); s != "" {
		return []byte(s)
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Error("failed to generate token secret", "error", err)
		os.Exit(1)
	}
	log.Warn("no token secret configured, using a generated one")
	return secret
}

func runServer() error {
	log := newLogger()
	slog.SetDefault(log)

	store := db.NewStore()
	hub := transport.NewHub(log)
	eng := engine.New(store, hub, log)

	roomHandler := handlers.NewRoomHandler(store, eng, hub, log)
	tokenHandler := handlers.NewTokenHandler(tokenSecret(log), viper.GetDuration("token.ttl"))

	// Periodic sweep for rooms that emptied without a removal event.
	go func() {
		ticker := time.NewTicker(viper.GetDuration("cleanup.interval"))
		defer ticker.Stop()

		for range ticker.C {
			if count := store.CleanupEmptyRooms(); count > 0 {
				log.Info("cleaned up empty rooms", "count", count)
			}
		}
	}()

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws/:id", roomHandler.ServeWS)

	api := router.Group("/api")
	{
		api.POST("/rooms", roomHandler.CreateRoom)
		api.GET("/rooms/:id", roomHandler.GetRoom)
		api.POST("/token", tokenHandler.IssueToken)
	}

	addr := viper.GetString("listen")
	log.Info("starting server", "addr", addr)
	return router.Run(addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
