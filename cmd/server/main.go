package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/router"
	"github.com/iliyamo/table-reservation/internal/service"
	"github.com/iliyamo/table-reservation/internal/utils"
)

// holdSweepInterval is how often lapsed deposit holds are cancelled in the
// background, in addition to the sweep before every reservation.
const holdSweepInterval = time.Minute

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := utils.InitLogger(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Settings{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("migrate database")
	}

	tables := repository.NewTableRepo(db)
	reservations := repository.NewReservationRepo(db)
	schedule := repository.NewScheduleRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	publisher := queue.NewPublisher(cfg.RabbitMQURL, log)
	svc := service.NewReservationService(
		service.NewSQLStore(db, tables, reservations, schedule),
		publisher,
		service.Options{
			Location:        cfg.Location,
			DefaultDuration: time.Duration(cfg.DefaultDurationMin) * time.Minute,
			MaxDuration:     time.Duration(cfg.MaxDurationMin) * time.Minute,
			MaxPartySize:    cfg.MaxPartySize,
			DepositMinParty: cfg.DepositMinParty,
			HoldTTL:         cfg.HoldTTL,
			BookingHorizon:  time.Duration(cfg.BookingHorizonDays) * 24 * time.Hour,
		},
		log,
	)

	// Redis is optional: without it rate limiting and caching are off.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	staff := handler.NewStaffHandler(tables, schedule, reservations, svc, log)
	staff.OnScheduleChange = func(ctx context.Context) {
		if rdb == nil {
			return
		}
		if n, err := middleware.PurgeCache(ctx, cacheCfg, rdb); err != nil {
			log.WithError(err).Warn("purge opening-hours cache")
		} else if n > 0 {
			log.WithField("keys", n).Debug("purged opening-hours cache")
		}
	}

	e := router.New(router.Handlers{
		Health:       handler.Health(db),
		Auth:         handler.NewAuthHandler(cfg, users, tokens, log),
		Public:       handler.NewPublicHandler(svc, schedule, log),
		Reservations: handler.NewReservationHandler(svc, reservations, cfg.RestaurantName, log),
		Staff:        staff,
	}, router.Options{
		JWTSecret:    cfg.JWTSecret,
		Redis:        rdb,
		RateLimit:    config.LoadRateLimitConfig("RATE_LIMIT", config.DefaultRateLimit()),
		ReserveLimit: config.LoadRateLimitConfig("RESERVE_RATE_LIMIT", config.DefaultReserveRateLimit()),
		Cache:        cacheCfg,
		Log:          log,
	})

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := queue.NewConsumer(cfg.RabbitMQURL, cfg.LogDir, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("reservation consumer stopped")
		}
	}()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweepHolds(ctx, svc, holdSweepInterval, log)
	}()

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	<-consumerDone
	<-sweepDone
}

// holdExpirer is implemented by *service.ReservationService.
type holdExpirer interface {
	ExpirePending(ctx context.Context) (int64, error)
}

// sweepHolds cancels lapsed deposit holds every interval until ctx ends.
// main waits for it to return before closing the database.
func sweepHolds(ctx context.Context, svc holdExpirer, every time.Duration, log *logrus.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := svc.ExpirePending(ctx); err != nil {
				log.WithError(err).Warn("expire pending holds")
			} else if n > 0 {
				log.WithField("count", n).Info("expired pending holds")
			}
		}
	}
}
