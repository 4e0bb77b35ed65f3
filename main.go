package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pairing_server/config"
	"pairing_server/routes"
	"pairing_server/services"
	"pairing_server/socket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
)

// openStore builds the store selected by STORE_DRIVER. The returned func
// releases it on shutdown.
func openStore(ctx context.Context, cfg config.Config) (services.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		log.Printf("Opening SQLite store at %s...", cfg.SQLitePath)
		store, err := services.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.StoreDynamo:
		log.Println("Initializing DynamoDB client...")
		client, err := services.InitializeDynamoDBClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, err
		}
		dynamoService := &services.DynamoService{Client: client}
		log.Println("DynamoDB client initialized.")
		return services.NewDynamoStore(dynamoService, cfg.ClientsTable, cfg.PairingsTable), func() {}, nil
	default:
		log.Println("⚠️ Using in-memory store, state is lost on restart")
		return services.NewMemoryStore(), func() {}, nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	// Initialize Services
	credentialService := &services.CredentialService{Store: store, Metrics: metrics}
	pairingService := services.NewPairingService(store, credentialService, metrics, cfg.MatchRetryInterval)
	if err := pairingService.Load(ctx); err != nil {
		log.Fatalf("❌ Failed to restore pairings: %v", err)
	}
	defer pairingService.Close()

	rosterService := &services.RosterService{Store: store}
	if cfg.S3Bucket != "" {
		s3Service, err := services.NewS3Service(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			log.Fatalf("❌ Failed to initialize S3: %v", err)
		}
		rosterService.Exports = s3Service
		log.Printf("Roster exports are published to bucket %s", cfg.S3Bucket)
	}

	// Initialize the router
	r := mux.NewRouter()
	routes.RegisterRoutes(r, registry)
	routes.RegisterPairingRoutes(r, credentialService, pairingService)
	routes.RegisterRosterRoutes(r, rosterService)

	if cfg.EnableSocket {
		socketServer := socket.NewSocketServer(socket.ServiceCoordinator{
			Credentials: credentialService,
			Pairings:    pairingService,
		})
		go func() {
			if err := socketServer.Serve(); err != nil {
				log.Printf("❌ Socket.IO server stopped: %v", err)
			}
		}()
		defer socketServer.Close()
		routes.RegisterSocketRoute(r, socketServer)
	}

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: corsHandler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("❌ Shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on port %s...\n", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("👋 Server stopped")
}
