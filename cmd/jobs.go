package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"runtime/pprof"

	"ticket-marketplace/common/constant"
	"ticket-marketplace/inbound/event"
	"ticket-marketplace/outbound/pg"
	"ticket-marketplace/outbound/scheduler"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func runJobWorkerCmd(ctx context.Context) {
	cfg := newCfg("env")

	if cfg.GetString("env") == "dev" {
		cpu, err := os.Create("jobs-cpu.prof")
		if err != nil {
			log.Fatalf("could not create CPU profile: %v", err)
		}
		defer cpu.Close()

		err = pprof.StartCPUProfile(cpu)
		if err != nil {
			log.Fatalf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()

		mem, err := os.Create("jobs-mem.prof")
		if err != nil {
			log.Fatalf("could not create memory profile: %v", err)
		}
		defer mem.Close()

		err = pprof.WriteHeapProfile(mem)
		if err != nil {
			log.Fatalf("could not write memory profile: %v", err)
		}
		defer mem.Close()
	}

	db := newDb(cfg)
	defer db.Close()

	querier := pg.New(db)

	cacheClient := newRedis(cfg)
	defer cacheClient.Close()

	natsConn := newNats(cfg)
	defer natsConn.Close()

	js := newJs(natsConn)
	createStreamWorkQueue(ctx, js)

	transactionEvent := event.TransactionEvent{
		Db:                   db,
		Querier:              querier,
		Publisher:            js,
		IdrCurrencyFormatter: message.NewPrinter(language.Indonesian),
		Timeout:              cfg.GetDuration("jobs.handler_timeout"),
	}

	worker := scheduler.Worker{
		Cache:        cacheClient,
		Queue:        constant.TransactionJobQueue,
		PollInterval: cfg.GetDuration("jobs.poll_interval"),
		BatchSize:    cfg.GetInt64("jobs.batch_size"),
		Handlers: map[string]scheduler.HandlerFunc{
			constant.JobPaymentWindowExpiry:      transactionEvent.PaymentWindowHandler,
			constant.JobConfirmationWindowExpiry: transactionEvent.ConfirmationWindowHandler,
		},
	}

	go worker.Run(ctx)

	slog.InfoContext(ctx, "job worker started")

	<-ctx.Done()

	slog.InfoContext(ctx, "job worker stopped")
}
