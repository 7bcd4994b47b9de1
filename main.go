// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-api/cart"
	"storefront-api/config"
	"storefront-api/controllers"
	"storefront-api/events"
	"storefront-api/middleware"
	"storefront-api/routes"
	"storefront-api/store"
	"storefront-api/utils"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var stores store.Stores
	switch cfg.StoreDriver {
	case "memory":
		log.Println("Using in-memory store; data is lost on exit.")
		stores = store.NewMemory().Stores()
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := store.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err == nil {
			err = db.EnsureIndexes(connectCtx)
		}
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				log.Printf("mongo disconnect: %v", err)
			}
		}()
		stores = db.Stores()
	}

	// Notifications
	emailService, err := utils.NewEmailService(cfg.EmailProvider, cfg.EmailToken, cfg.EmailSender)
	if err != nil {
		log.Fatalf("email: %v", err)
	}
	var publisher events.Publisher = events.Nop{}
	switch {
	case cfg.RabbitMQURL != "":
		publisher = events.AMQPPublisher{URL: cfg.RabbitMQURL}
		if emailService != nil {
			go func() {
				if err := events.Consume(ctx, cfg.RabbitMQURL, events.MailHandler{Mailer: emailService}); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("events consumer stopped: %v", err)
				}
			}()
		}
	case emailService != nil:
		publisher = events.Inline{Handler: events.MailHandler{Mailer: emailService}}
	}

	// Rate limiting degrades to a pass-through without redis
	var scripter redis.Scripter
	if cfg.RateLimit.Enabled {
		if rdb := config.NewRedisClient(); rdb != nil {
			defer rdb.Close()
			scripter = rdb
		} else {
			log.Println("Redis unavailable; rate limiting disabled.")
		}
	}

	// Initialize controllers
	base := controllers.Base{Timeout: cfg.RequestTimeout, Dev: cfg.Dev()}
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn)
	auth := &middleware.Auth{Tokens: tokens, Users: stores.Users, Dev: cfg.Dev()}
	ctrls := routes.Controllers{
		Users: &controllers.UserController{
			Base: base, Users: stores.Users, Tokens: tokens, Events: publisher, BcryptCost: cfg.BcryptCost,
		},
		Categories: &controllers.CategoryController{Base: base, Categories: stores.Categories},
		Products:   &controllers.ProductController{Base: base, Products: stores.Products, Categories: stores.Categories},
		Cart:       &controllers.CartController{Base: base, Cart: cart.NewService(stores.Carts, stores.Products)},
		Health:     &controllers.HealthController{Base: base, Store: stores.Health},
	}

	// Set up the router
	router := mux.NewRouter()
	routes.RegisterRoutes(router, auth, middleware.RateLimit(cfg.RateLimit, scripter), ctrls)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORS(middleware.RequestLogger(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Server is running on port %s (env=%s)", cfg.Port, cfg.Env)
	if err := serve(ctx, srv, ln, 10*time.Second); err != nil {
		log.Printf("server: %v", err)
	}
}

// serve runs srv on ln until ctx is done, then drains in-flight requests for
// up to grace before returning. Deferred cleanup in main runs only after the
// drain.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-done; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
