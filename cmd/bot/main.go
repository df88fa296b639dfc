package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-roti-bot/internal/approval"
	"github.com/ariefcatur/go-roti-bot/internal/bot"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"github.com/ariefcatur/go-roti-bot/internal/config"
	"github.com/ariefcatur/go-roti-bot/internal/convo"
	"github.com/ariefcatur/go-roti-bot/internal/httpx"
	"github.com/ariefcatur/go-roti-bot/internal/intent"
	kafkax "github.com/ariefcatur/go-roti-bot/internal/kafka"
	"github.com/ariefcatur/go-roti-bot/internal/memory"
	"github.com/ariefcatur/go-roti-bot/internal/natsx"
	"github.com/ariefcatur/go-roti-bot/internal/orders"
	"github.com/ariefcatur/go-roti-bot/internal/postgres"
	"github.com/ariefcatur/go-roti-bot/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// backend menyimpan katalog dan order di tempat yang sama supaya approve
// bisa mengurangi stok dan mengubah status secara atomik.
type backend interface {
	catalog.Store
	orders.Store
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, _ := cfg.HoursPolicy()
	stateTTL, _ := cfg.StateTTLDuration()
	classifierTimeout, _ := cfg.ClassifierTimeoutDuration()

	// Katalog & order
	var store backend
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db, log); err != nil {
			return err
		}
		pg := &postgres.Store{DB: db}
		if cfg.SeedCatalog {
			if err := pg.SeedProducts(ctx, catalog.Seed); err != nil {
				return err
			}
		}
		store = pg
	} else {
		var seed []catalog.Product
		if cfg.SeedCatalog {
			seed = catalog.Seed
		}
		store = memory.NewStore(seed...)
		log.Warn("POSTGRES_DSN empty, using in-memory catalog and orders")
	}

	// State percakapan & dedup
	var states convo.Store = convo.NewMemoryStore()
	var dedup bot.Deduper
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		states = &redisx.StateStore{Redis: rdb, Service: cfg.ServiceName, TTL: stateTTL}
		dedup = &redisx.Dedup{Redis: rdb, Service: cfg.ServiceName}
	}

	// Sink balasan & publisher event
	sinks := chat.MultiSink{}
	var publishers orders.Publishers
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Log = log
		prod.Start()
		sinks = append(sinks, kafkax.ReplySink{Producer: prod, Topic: cfg.KafkaOutboundTopic})
		publishers = append(publishers, kafkax.OrderEvents{Producer: prod})
	}
	if cfg.NATSURL != "" {
		nc, err := natsx.Connect(ctx, cfg.NATSURL, cfg.ServiceName, log)
		if err != nil {
			return err
		}
		defer nc.Close()
		sinks = append(sinks, natsx.ReplySink{Publisher: &natsx.Publisher{Conn: nc, Subject: cfg.NATSSubject}})
		publishers = append(publishers, natsx.OrderEvents{Publisher: &natsx.Publisher{Conn: nc, Subject: cfg.NATSEventSubject}})
	}
	if len(sinks) == 0 {
		sinks = append(sinks, chat.LogSink{Log: log})
	}
	var events orders.EventPublisher
	if len(publishers) > 0 {
		events = publishers
	}

	// Classifier
	var classifier intent.Classifier
	if cfg.GroqAPIKey != "" {
		classifier = &intent.GroqClassifier{
			APIKey:  cfg.GroqAPIKey,
			Model:   cfg.GroqModel,
			BaseURL: cfg.GroqBaseURL,
			HTTP:    &http.Client{Timeout: classifierTimeout},
		}
	} else {
		log.Info("GROQ_API_KEY empty, classifier tier disabled")
	}

	// Core
	workflow := &approval.Workflow{
		Orders:      store,
		Sink:        sinks,
		AdminID:     cfg.AdminID,
		AdminChatID: cfg.AdminChatID,
		Events:      events,
		Service:     cfg.ServiceName,
		Log:         log,
	}
	engine := &bot.Engine{
		Catalog:  store,
		Resolver: intent.NewResolver(store, classifier, classifierTimeout, log),
		Flow: &convo.Flow{
			States:  &convo.Tracker{Store: states, TTL: stateTTL},
			Catalog: store,
		},
		Orders: &orders.Manager{
			Catalog:  store,
			Orders:   store,
			Notifier: workflow,
			Events:   events,
			Service:  cfg.ServiceName,
			Log:      log,
		},
		Approvals: workflow,
		Hours:     &policy,
		Log:       log,
	}
	dispatcher := &bot.Dispatcher{Engine: engine, Sink: sinks, Dedup: dedup, Log: log}

	// HTTP
	router := httpx.NewRouter()
	(&httpx.EventsHandler{Dispatcher: dispatcher, Catalog: store, Log: log}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if len(cfg.KafkaBrokers) > 0 {
		// satu worker: event diproses sesuai urutan kedatangan
		consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaInboundTopic, 1)
		consumer.Log = log
		g.Go(func() error {
			log.Info("kafka consumer started", "topic", cfg.KafkaInboundTopic, "group", cfg.KafkaGroup)
			return consumer.Start(gctx, kafkax.InboundHandler(dispatcher.Dispatch, log))
		})
	}

	err := g.Wait()
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
	return err
}
