package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/Anandakumar9/Ask-Anand-sub002/internal/assembly"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/bank"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/config"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/database"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/generator"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/history"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/mocktest"
	"github.com/Anandakumar9/Ask-Anand-sub002/internal/scoring"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Stores
	bankStore := bank.NewStore(db)
	tracker := history.NewTracker(db, cfg.HistoryRetention)
	attemptStore := mocktest.NewStore(db)

	// Generation provider chain: primary plus optional fallback, or a
	// deterministic local generator for development.
	var backends []generator.Backend
	if cfg.MockGenerator {
		log.Println("Using mock question generator")
		backends = append(backends, generator.NewMockBackend())
	} else {
		backends = append(backends, generator.NewAnthropicBackend(cfg.AnthropicModel, cfg.PerCallTimeout))
		if cfg.RouterBaseURL != "" {
			backends = append(backends, generator.NewRouterBackend(cfg.RouterBaseURL, cfg.RouterModel, cfg.PerCallTimeout))
		}
	}
	chain := generator.NewChain(backends...)

	// Assembly pipeline and result cache
	orch := assembly.NewOrchestrator(bankStore, tracker, chain, assembly.Config{
		BatchSize:      cfg.BatchSize,
		BatchSlack:     cfg.BatchSlack,
		PerCallTimeout: cfg.PerCallTimeout,
	})
	cache := assembly.NewCache(orch.Assemble, cfg.CacheTTL, cfg.NegativeTTL)

	// Scoring and mock test lifecycle
	engine := scoring.NewEngine(cfg.StarThreshold, cfg.RetryThreshold, tracker)
	service := mocktest.NewService(cache, bankStore, attemptStore, engine, mocktest.Config{
		DefaultCount:       cfg.DefaultCount,
		DefaultRatio:       cfg.DefaultRatio,
		SyncDeadline:       cfg.SyncDeadline,
		BackgroundDeadline: cfg.BackgroundDeadline,
	})
	testHandler := mocktest.NewHandler(service)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	testHandler.RegisterRoutes(api)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cache.StartSweeper(gctx, cfg.SweepInterval)
		return nil
	})
	g.Go(func() error {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}
