package server

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"material-pipeline/config"
	"material-pipeline/constant"
	"material-pipeline/handler"
	"material-pipeline/pkg/mailer"
	"material-pipeline/pkg/oracle"
	"material-pipeline/pkg/rabbitmq"
	"material-pipeline/pkg/storage"
	"material-pipeline/repository"
	"material-pipeline/service"
)

// staleSteps is the number of oracle calls in one generation run.
const staleSteps = 5

// app holds everything both the server and the worker run on.
type app struct {
	cfg        *config.Config
	db         *gorm.DB
	conn       *amqp.Connection
	publisher  *rabbitmq.Publisher
	providers  *storage.Registry
	generation service.GenerationService
	uploads    service.UploadService
	transcode  service.TranscodeService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logLevel := logger.Warn
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		logLevel = logger.Info
	}
	db, err := repository.Open(cfg.DB, logLevel)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	providers, err := config.NewStorageRegistry(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	generator, err := oracle.New(cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	var notifier service.Notifier = mailer.LogOnly{}
	if cfg.Mail.Host != "" {
		notifier = mailer.NewSMTP(cfg.Mail)
	}

	a := &app{cfg: cfg, db: db, providers: providers}

	// a nil publisher runs generation in-process and skips transcoding
	var publisher service.JobPublisher
	if cfg.Queue.Enabled() {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		a.conn = conn
		a.publisher = rabbitmq.NewPublisher(conn, cfg.Queue)
		publisher = a.publisher
	} else {
		zerolog.Ctx(ctx).Warn().Msg("rabbitmq not configured, generation runs in-process and videos are not transcoded")
	}

	materials := repository.NewMaterialRepository(db)
	files := repository.NewCourseMaterialRepository(db)
	refs := repository.NewReferenceRepository(db)

	// a run idle for as long as every oracle call timing out is abandoned
	staleAfter := cfg.Generator.CallTimeout() * staleSteps
	a.generation = service.NewGenerationService(materials, refs, generator, notifier, publisher, staleAfter)
	a.uploads = service.NewUploadService(files, providers, publisher)
	a.transcode = service.NewTranscodeService(files, providers, cfg.Transcode)
	return a, nil
}

// consumers starts the queue consumers and blocks until ctx is done. It is a
// no-op without a broker.
func (a *app) consumers(ctx context.Context) error {
	if a.conn == nil {
		<-ctx.Done()
		return nil
	}
	deps := handler.ServiceDependencies{
		GenerationService: a.generation,
		TranscodeService:  a.transcode,
	}
	generationConsumer := rabbitmq.NewConsumer(a.conn, a.cfg.Queue, rabbitmq.GenerationTopology, a.cfg.Server.Workers, handler.GenerationHandler, nil)
	transcodeConsumer := rabbitmq.NewConsumer(a.conn, a.cfg.Queue, rabbitmq.TranscodeTopology, a.cfg.Server.Workers, handler.TranscodeHandler, handler.TranscodeDeadLetter)

	errs := make(chan error, 2)
	go func() { errs <- generationConsumer.Consume(ctx, deps) }()
	go func() { errs <- transcodeConsumer.Consume(ctx, deps) }()

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil && ctx.Err() == nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *app) close(ctx context.Context) {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to close publisher")
		}
	}
	if closer, ok := a.providers.Default().(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to close storage client")
		}
	}
	if err := a.cfg.DB.Close(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to close database")
	}
}
