package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/totegamma/web5-playground/internal/config"
	"github.com/totegamma/web5-playground/internal/domain"
	"github.com/totegamma/web5-playground/internal/infrastructure/providers"
	"github.com/totegamma/web5-playground/internal/infrastructure/repository"
	"github.com/totegamma/web5-playground/internal/present/rest"
	"github.com/totegamma/web5-playground/internal/present/rest/middleware"
	"github.com/totegamma/web5-playground/internal/service"
	"github.com/totegamma/web5-playground/internal/usecase"
)

func main() {
	configPath := os.Getenv("WEB5_CONFIG")
	if configPath == "" {
		configPath = "/etc/web5/config.yaml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		shutdown, err := setupTraceProvider(conf.Server.TraceEndpoint, conf.NodeInfo.FQDN)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	db, err := providers.NewDatabase(conf.Server)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := providers.MigrateDatabase(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := providers.NewRedis(conf.Server)
	mc := providers.NewMemcache(conf.Server.MemcachedAddr)
	ledger := providers.NewClient(conf.Server.ExplorerAddr)

	domainConf := domain.Config{
		FQDN:       conf.NodeInfo.FQDN,
		PrivateKey: conf.NodeInfo.PrivateKey,
		ServerKey:  conf.NodeInfo.ServerKey,
	}

	actorRepo := repository.NewActorRepository(db)
	accountRepo := repository.NewAccountRepository(db, mc, domainConf)
	sequencerRepo := repository.NewSequencerRepository(rdb)
	resolver := providers.NewLedgerGateway(ledger)

	repoUC := usecase.NewRepoUsecase(actorRepo, accountRepo, resolver, sequencerRepo)
	accountUC := usecase.NewAccountUsecase(actorRepo, accountRepo, resolver, sequencerRepo)
	actionUC := usecase.NewActionUsecase(actorRepo, accountRepo, resolver, sequencerRepo, domainConf)

	firehose := service.NewFirehoseService(rdb)
	auth := middleware.NewAuthMiddleware(service.NewAuthService(domainConf), domainConf)

	handler := rest.NewHandler(domainConf, repoUC, accountUC, actionUC, firehose, ledger)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(conf.NodeInfo.FQDN))
	}
	e.Use(auth.IdentifyIdentity)

	handler.RegisterRoutes(e)

	listen := conf.Server.ListenAddr
	if listen == "" {
		listen = ":8000"
	}
	e.Logger.Fatal(e.Start(listen))
}

func setupTraceProvider(endpoint string, serviceName string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
