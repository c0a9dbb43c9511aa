package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/orderable/matchcore/api/httpapi"
	"github.com/orderable/matchcore/domain/market"
	"github.com/orderable/matchcore/engine"
	"github.com/orderable/matchcore/infra/kafka"
	"github.com/orderable/matchcore/infra/outbox"
	"github.com/orderable/matchcore/infra/sequence"
	"github.com/orderable/matchcore/infra/wal"
	"github.com/orderable/matchcore/jobs/broadcaster"
	"github.com/orderable/matchcore/ops"
	"github.com/orderable/matchcore/service"
)

func main() {
	// ---------------- Config & Logger ----------------

	cfg := ops.LoadFromEnv("")

	log, err := ops.NewLogger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// ---------------- Markets ----------------

	registry := market.NewRegistry()
	for _, sym := range cfg.Markets.Symbols {
		registry.Add(sym, market.Params{
			TickSize: cfg.Markets.TickSize,
			LotSize:  cfg.Markets.LotSize,
		})
	}
	validator := market.NewValidator(registry)

	// ---------------- Intake Journal ----------------

	journal, err := wal.Open(wal.Config{
		Dir:         cfg.Storage.WALDir,
		SegmentSize: cfg.Storage.WALSegmentMax,
	})
	if err != nil {
		log.Fatal("journal init failed", zap.Error(err))
	}
	defer journal.Close()

	// ---------------- Event Outbox ----------------

	ob, err := outbox.Open(cfg.Storage.OutboxDir)
	if err != nil {
		log.Fatal("outbox init failed", zap.Error(err))
	}
	defer ob.Close()

	// ---------------- Engine ----------------

	gw := engine.NewGateway(engine.Config{
		QueueSize:     cfg.Engine.QueueSize,
		SubmitTimeout: cfg.Engine.SubmitTimeout,
	}, log)
	defer gw.Close()

	// ---------------- Recovery ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := service.Bootstrap(ctx, cfg.Storage.SnapshotDir, cfg.Storage.WALDir, gw, log)
	if err != nil {
		log.Fatal("recovery failed", zap.Error(err))
	}

	ids := sequence.New(state.LastID)

	// The snapshot's event sequence can trail the outbox: events staged
	// after the last snapshot are durable but not covered by it. Resume
	// above both or fresh events overwrite undelivered entries.
	lastEvent := state.LastEventSeq
	if obMax, err := ob.MaxSeq(); err != nil {
		log.Fatal("outbox scan failed", zap.Error(err))
	} else if obMax > lastEvent {
		lastEvent = obMax
	}
	eventSeq := sequence.New(lastEvent)

	// ---------------- Publisher & Service ----------------

	feed := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TradeTopic)
	defer feed.Close()

	pub := service.NewPublisher(ob, feed, eventSeq, log)
	svc := service.NewOrderService(validator, gw, journal, ids, pub, log)

	// ---------------- Background Jobs ----------------

	bc, err := broadcaster.New(ob, cfg.Kafka.Brokers, cfg.Kafka.EventTopic, cfg.Jobs.BroadcastEvery, log)
	if err != nil {
		log.Fatal("broadcaster init failed", zap.Error(err))
	}
	defer bc.Close()
	bc.Start(ctx)

	svc.StartSnapshotJob(ctx, cfg.Storage.SnapshotDir, cfg.Jobs.SnapshotEvery, ob)
	svc.StartReclaimJob(ctx, cfg.Jobs.ReclaimEvery)

	// ---------------- HTTP ----------------

	srv := httpapi.NewServer(svc, registry, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.HTTP.Addr)
	}()

	log.Info("matchcore running",
		zap.String("addr", cfg.HTTP.Addr),
		zap.Strings("symbols", cfg.Markets.Symbols),
		zap.Uint64("lastSeq", state.LastID),
	)

	// ---------------- Shutdown ----------------

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("shutting down", zap.String("signal", s.String()))
	case err := <-errCh:
		log.Error("http server exited", zap.Error(err))
	}

	cancel()
	if err := journal.Sync(); err != nil {
		log.Warn("journal sync on shutdown failed", zap.Error(err))
	}
}
