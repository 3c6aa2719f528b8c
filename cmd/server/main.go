package main // Entry point package

import (
	"context"
	"log"  // Logging library
	"time" // tickers for the background sweep

	"github.com/go-playground/validator/v10" // request body validation
	"github.com/joho/godotenv"               // loads .env files in development
	"github.com/labstack/echo/v4"            // Echo web framework

	"github.com/marvinagmata/tourism-room-booking/internal/availability"
	"github.com/marvinagmata/tourism-room-booking/internal/booking"
	"github.com/marvinagmata/tourism-room-booking/internal/config" // Internal config loader
	"github.com/marvinagmata/tourism-room-booking/internal/database"
	"github.com/marvinagmata/tourism-room-booking/internal/gateway"
	"github.com/marvinagmata/tourism-room-booking/internal/handler"
	appmw "github.com/marvinagmata/tourism-room-booking/internal/middleware"
	"github.com/marvinagmata/tourism-room-booking/internal/payment"
	"github.com/marvinagmata/tourism-room-booking/internal/queue"
	"github.com/marvinagmata/tourism-room-booking/internal/reconcile"
	"github.com/marvinagmata/tourism-room-booking/internal/repository"
	"github.com/marvinagmata/tourism-room-booking/internal/router" // Internal router setup
	queuepublisher "github.com/marvinagmata/tourism-room-booking/internal/service"
	"github.com/marvinagmata/tourism-room-booking/internal/txn"
)

// requestValidator adapts go-playground/validator to Echo's Validator
// interface so handlers can call c.Validate on bound request bodies.
type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

func main() {
	// .env is optional; real deployments inject environment variables
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	// repositories and the shared transaction runner
	rooms := repository.NewRoomRepo(db)
	bookings := repository.NewBookingRepo(db)
	blocked := repository.NewBlockedDateRepo(db)
	payments := repository.NewPaymentRepo(db)
	runner := txn.NewSQLRunner(db)

	// domain services
	calc := availability.NewCalculator(rooms, bookings, blocked)
	ledger := booking.NewLedger(runner, rooms, bookings, blocked, payments)
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecret, cfg.GatewayTimeout)
	orch := payment.NewOrchestrator(runner, bookings, payments, gw, cfg.Currency)
	publisher := queuepublisher.NewAMQPPublisher()
	engine := reconcile.NewEngine(runner, payments, bookings, publisher, cfg.ReserveMinPaidRatio)

	// background consumer appends reserved-booking events to a log file
	go func() {
		if err := queue.StartReservedConsumer(); err != nil {
			log.Printf("queue consumer stopped: %v", err)
		}
	}()

	// periodic sweep releasing rooms held by unpaid PENDING bookings
	go func() {
		ticker := time.NewTicker(cfg.ExpireSweepEvery)
		defer ticker.Stop()
		for range ticker.C {
			n, err := ledger.ExpirePending(context.Background(), time.Now().UTC().Add(-cfg.PendingTTL))
			if err != nil {
				log.Printf("expire sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expire sweep released %d pending bookings", n)
			}
		}
	}()

	e := echo.New() // Create Echo instance
	e.Validator = &requestValidator{v: validator.New()}

	// Redis-backed middleware degrades gracefully: a nil client disables
	// both the response cache and the rate limiter.
	rdb := config.NewRedisClient()
	var cacheMW, limitMW []echo.MiddlewareFunc
	if rdb != nil {
		cacheMW = append(cacheMW, appmw.NewRedisCache(config.LoadCacheConfig(), rdb))
		limitMW = append(limitMW, appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	} else {
		log.Println("redis unavailable: response cache and rate limiting disabled")
	}

	availabilityHandler := handler.NewAvailabilityHandler(calc)
	bookingHandler := handler.NewBookingHandler(ledger, bookings, rooms, cfg.PendingTTL)
	paymentHandler := handler.NewPaymentHandler(orch, engine, gw, payments, bookings, rooms)
	webhookHandler := handler.NewWebhookHandler(engine, cfg.GatewayWebhookKey)

	router.RegisterRoutes(e) // Register application routes
	router.RegisterPublic(e, availabilityHandler, webhookHandler, cacheMW...)
	router.RegisterBooking(e, bookingHandler, paymentHandler, cfg.JWTSecret, limitMW...)
	router.RegisterInternal(e, bookingHandler)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
