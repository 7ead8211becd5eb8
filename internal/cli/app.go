package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"acp_dues/internal/adapters/filestore"
	"acp_dues/internal/adapters/notify"
	"acp_dues/internal/adapters/opener"
	"acp_dues/internal/clock"
	"acp_dues/internal/config"
	"acp_dues/internal/handlers"
	"acp_dues/internal/logger"
	"acp_dues/internal/metrics"
	"acp_dues/internal/repository/database"
	"acp_dues/internal/repository/records"
	"acp_dues/internal/services/delinquency"
	"acp_dues/internal/services/dues"
	"acp_dues/internal/services/importer"
	"acp_dues/internal/services/importer/processors"
	"acp_dues/internal/services/ledger"
	"acp_dues/internal/services/members"
	"acp_dues/internal/services/reminders"
)

const setupTimeout = 15 * time.Second

// app holds live connections and every service built on top of them.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	registry *prometheus.Registry
	clock    clock.Clock
	journal  *records.Journal

	members     *members.Service
	dues        *dues.Service
	ledger      *ledger.Service
	delinquency *delinquency.Aggregator
	reminders   *reminders.Dispatcher
	imports     *importer.Submitter
}

type appOptions struct {
	foregroundImports bool
}

func newApp(ctx context.Context, log zerolog.Logger, opts appOptions) (*app, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	cfg, err := config.Init(setupCtx, settings)
	if err != nil {
		return nil, err
	}
	if err := cfg.S3.EnsureBucket(setupCtx); err != nil {
		cfg.Close(ctx)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clk := clock.New(settings.Location)
	store := database.NewStore(cfg.Postgres)
	files := filestore.NewS3(cfg.S3.Client, cfg.S3.Bucket, logger.Component(log, "filestore"))
	journal := records.NewJournal(cfg.Mongo, logger.Component(log, "records"))

	importLog := logger.Component(log, "importer")
	httpClient := &http.Client{Timeout: 30 * time.Second}
	open := opener.NewCompoundOpener(
		opener.NewHTTPOpener(httpClient, importLog),
		opener.NewS3Opener(cfg.S3.Client, importLog),
		cfg.S3.Bucket,
	)
	notifier := notify.New(notify.NewEmail(settings.SMTP), notify.NewWhatsApp(settings.WhatsApp, httpClient), logger.Component(log, "notify"))

	agg := delinquency.NewAggregator(store)
	registry := processors.Registry(processors.NewMembersProcessor(store, journal, importLog))
	imp := importer.NewService(open, registry, journal, importLog,
		importer.WithMetrics(m),
		importer.WithMaxBytes(settings.ImportMaxBytes),
		importer.WithBatchSize(settings.ImportBatchSize),
	)

	subOpts := []importer.SubmitOption{}
	if opts.foregroundImports {
		subOpts = append(subOpts, importer.WithForegroundRun())
	}

	return &app{
		cfg:         cfg,
		log:         log,
		registry:    reg,
		clock:       clk,
		journal:     journal,
		members:     members.NewService(store, files, logger.Component(log, "members")),
		dues:        dues.NewService(store, files, clk, logger.Component(log, "dues"), dues.WithMetrics(m), dues.WithMaxReceiptBytes(settings.ReceiptMaxBytes)),
		ledger:      ledger.NewService(store, files, clk, logger.Component(log, "ledger")),
		delinquency: agg,
		reminders: reminders.NewDispatcher(agg, notifier, journal, logger.Component(log, "reminders"), m, reminders.Config{
			Association: settings.AssociationName,
			Concurrency: settings.ReminderConcurrency,
		}),
		imports: importer.NewSubmitter(imp, files, journal, importLog, subOpts...),
	}, nil
}

func (a *app) handlers() *handlers.Handlers {
	return &handlers.Handlers{
		Members:     a.members,
		Dues:        a.dues,
		Ledger:      a.ledger,
		Delinquency: a.delinquency,
		Reminders:   a.reminders,
		Imports:     a.imports,
		Records:     a.journal,
		Clock:       a.clock,
		Check:       a.cfg.CheckConnections,
		MaxUpload:   max(a.cfg.ReceiptMaxBytes, a.cfg.ImportMaxBytes) + 1<<20,
		Logger:      a.log,
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.cfg.Close(ctx)
}
