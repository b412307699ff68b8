package main // Entry point package

import (
	"log"  // Logging library
	"time" // Durations for the code validity window

	"github.com/joho/godotenv"    // Loads a local .env file into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/team-workspace/internal/config"     // Internal config loader
	"github.com/iliyamo/team-workspace/internal/database"   // MySQL pool setup
	"github.com/iliyamo/team-workspace/internal/handler"    // HTTP handlers
	"github.com/iliyamo/team-workspace/internal/middleware" // Session resolver and rate limiter
	"github.com/iliyamo/team-workspace/internal/queue"      // Mail queue consumer
	"github.com/iliyamo/team-workspace/internal/repository" // Storage layer
	"github.com/iliyamo/team-workspace/internal/router"     // Internal router setup
	"github.com/iliyamo/team-workspace/internal/utils"      // Token codec
)

func main() {
	_ = godotenv.Load() // Pull in .env when present; real environment variables win

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg) // Open the MySQL pool and verify connectivity
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Storage layer, one repo per table group.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	codes := repository.NewCodeRepo(db, time.Duration(cfg.CodeTTLMin)*time.Minute, cfg.CodeLength)
	teams := repository.NewTeamRepo(db)
	invites := repository.NewInvitationRepo(db)

	codec := utils.NewTokenCodec(cfg.JWTSecret) // Signs and verifies both token kinds

	e := echo.New()                      // Create Echo instance
	e.Validator = handler.NewValidator() // Payload validation with field-level errors

	// Optional Redis token bucket in front of every route.
	if rl := config.LoadRateLimitConfig(); rl.Enabled {
		if rdb := config.NewRedisClient(); rdb != nil {
			e.Use(middleware.NewTokenBucket(rl, rdb))
		}
	}

	// The session resolver in both of its forms: strict for regular
	// routes, verify-exempt for the verification flow itself.
	session := middleware.Session(cfg, codec, users, tokens, true)
	sessionLoose := middleware.Session(cfg, codec, users, tokens, false)

	a := handler.NewAuthHandler(cfg, codec, users, tokens)
	u := handler.NewUserHandler(cfg, users, tokens, codes)
	t := handler.NewTeamHandler(teams)
	i := handler.NewInvitationHandler(invites, teams)

	router.RegisterRoutes(e)                            // Health check
	router.RegisterUser(e, a, u, session, sessionLoose) // Account, verification and reset routes
	router.RegisterTeam(e, t, i, session)               // Team, membership and invitation routes

	go queue.StartEmailConsumer(cfg) // Drain the mail queue in the background

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
