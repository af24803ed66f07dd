package main

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trattoria/auth"
	"trattoria/config"
	"trattoria/db"
	"trattoria/eventbooking"
	"trattoria/filemgr"
	"trattoria/globals"
	"trattoria/live"
	"trattoria/logger"
	"trattoria/menu"
	"trattoria/metrics"
	"trattoria/middleware"
	"trattoria/mq"
	"trattoria/orders"
	"trattoria/pay"
	"trattoria/ratelim"
	"trattoria/rdx"
	"trattoria/reservation"
	"trattoria/routes"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack is needed by the websocket upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// loggingMiddleware logs each request and records its latency.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		d := time.Since(start)
		metrics.Observe(r.Method, rec.status, d)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", d).
			Msg("request")
	})
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.Development())
	globals.JwtSecret = cfg.JWTSecret
	if problems := cfg.Insecure(); len(problems) > 0 {
		if !cfg.Development() {
			log.Fatal().Strs("problems", problems).Msg("refusing to start with insecure configuration outside development")
		}
		log.Warn().Strs("problems", problems).Msg("insecure configuration, acceptable only in development")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB); err != nil {
		log.Fatal().Err(err).Msg("mongodb unavailable")
	}
	ictx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := db.CreateIndexes(ictx); err != nil {
		log.Error().Err(err).Msg("index creation failed")
	}
	cancel()

	hub := live.NewHub()
	go hub.Run()

	// Redis backs locks, OTPs, the token denylist and the event channel.
	// Without it everything falls back to in-process state, which is only
	// correct for a single instance.
	var (
		locker    rdx.Locker
		publisher mq.Publisher
		codes     auth.Codes
	)
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := rdx.Connect(rctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using in-process locks and stores")
		locker = rdx.NewLocalLocker()
		publisher = mq.NewRecorder(hub.Publish)
		codes = auth.NewMemoryCodes()
	} else {
		locker = rdx.NewRedisLocker(rdx.Conn)
		publisher = &mq.RedisPublisher{Client: rdx.Conn, Channel: globals.EventsChannel}
		codes = auth.RedisCodes{}
		go mq.Subscribe(ctx, rdx.Conn, globals.EventsChannel, hub.Publish)
	}

	var mailer auth.Mailer = auth.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = &auth.SMTPMailer{Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom}
	} else {
		log.Warn().Msg("SMTP_HOST not set, emails are written to the log")
	}

	authSvc := auth.NewService(&auth.MongoUsers{C: db.UserCollection}, codes, mailer, cfg.JWTSecret, cfg.TokenTTL, cfg.PublicBaseURL)
	if rdx.Conn == nil {
		middleware.Revoked = authSvc.IsRevoked
	}

	resSvc := reservation.NewService(
		&reservation.MongoStore{Tables: db.TableCollection, Reservations: db.ReservationCollection},
		locker, publisher, cfg.Location)
	ebSvc := eventbooking.NewService(
		&eventbooking.MongoStore{Events: db.EventCollection, Resources: db.ResourceCollection, Bookings: db.EventBookingCollection},
		locker, publisher)

	deps := routes.Deps{
		Auth:          auth.NewHandler(authSvc),
		Reservations:  reservation.NewHandler(resSvc, cfg.TicketSecret),
		EventBookings: eventbooking.NewHandler(ebSvc, cfg.TicketSecret),
		Orders:        orders.NewHandler(publisher),
		Pay:           pay.NewHandler(pay.NewClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalSecret), cfg.Currency, publisher),
		Images:        &menu.Images{Files: &filemgr.Store{Root: cfg.UploadDir}},
		Hub:           hub,
		Idempotency:   &pay.MongoIdempotency{C: db.IdempotencyCollection},
		TicketSecret:  cfg.TicketSecret,
		UploadDir:     cfg.UploadDir,
	}

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	go rateLimiter.Run(ctx)

	router := httprouter.New()
	routes.RoutesWrapper(router, rateLimiter, deps)

	// apply middleware: logging → security headers → CORS → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(hub.Stop)

	go func() {
		log.Info().Str("addr", cfg.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, shutting down gracefully")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := db.Disconnect(sctx); err != nil {
		log.Error().Err(err).Msg("mongodb disconnect failed")
	}
	if err := rdx.Close(); err != nil {
		log.Error().Err(err).Msg("redis close failed")
	}
	log.Info().Msg("server stopped cleanly")
}
