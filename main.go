package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/social-realtime-demo/modules/chatstore"
	"github.com/example/social-realtime-demo/modules/identity"
	"github.com/example/social-realtime-demo/modules/notifier"
	"github.com/example/social-realtime-demo/modules/presence"
	"github.com/example/social-realtime-demo/modules/registry"
	"github.com/example/social-realtime-demo/modules/router"
	"github.com/example/social-realtime-demo/modules/wsserver"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Social Realtime Gateway - Fiber + EventBus Pubsub ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	storeModule := chatstore.NewModule()
	registryModule := registry.NewModule()
	reg := registryModule.Registry()

	presenceModule := presence.NewModule(reg, storeModule)
	routerModule := router.NewModule(reg, storeModule)
	notifierModule := notifier.NewModule(reg)

	binder := identity.NewBinder(identity.NewJWTManager(identity.ConfigFromEnv()), storeModule)

	addr := ":" + port()
	wsModule := wsserver.NewModule(addr, reg, routerModule.Router(), binder, presenceModule.Notifier())

	// Cross-module wiring the ServiceContainer does not cover:
	// a GET_USER_ID bind announces presence, and a heartbeat eviction
	// runs the same teardown as a read-loop exit.
	routerModule.Router().SetBindHandler(presenceModule.Notifier().HandleBind)
	registryModule.SetEvictHandler(func(c *registry.Conn) {
		presenceModule.Notifier().HandleDisconnect(context.Background(), c)
	})

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - chatstore: persistence (GORM/SQLite)
	// - registry:  shared connection table + heartbeat sweeper
	// - presence:  online/offline fan-out (EventEmitterModule)
	// - router:    inbound frame dispatch (EventEmitterModule)
	// - notifier:  bus notification fan-out (EventConsumerModule)
	// - ws-server: driving adapter (Fiber WebSocket server)
	app.Register(storeModule)
	app.Register(registryModule)
	app.Register(presenceModule)
	app.Register(routerModule)
	app.Register(notifierModule)
	app.Register(wsModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "3000"
}

func printStartupInfo() {
	p := port()
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "social.db"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Persistence: GORM + SQLite")
	log.Printf("  - Database: %s", dbPath)
	log.Printf("  - Presence cache: Redis at %s (optional)", redisAddr)
	log.Println("")
	log.Println("Realtime flow:")
	log.Println("  - Inbound frames -> router -> recipient sockets + persistence")
	log.Println("  - Bind/disconnect -> presence module -> ONLINE_STATUS fan-out")
	log.Println("  - ChatCreated/Friend/Post bus events -> notifier -> sockets")
	log.Println("")
	log.Printf("Endpoints (http://localhost:%s):", p)
	log.Println("  GET    /health  - Health check")
	log.Println("  GET    /ws      - WebSocket endpoint (accessToken/refreshToken cookies)")
	log.Println("")
	log.Printf("WebSocket frame types (ws://localhost:%s/ws):", p)
	log.Println("  GET_USER_ID, PING, ADD_MESSAGE, DELETE_MESSAGE, EDIT_MESSAGE,")
	log.Println("  FORWARD_MESSAGE, CHANGE_CHAT_PROCESS")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
