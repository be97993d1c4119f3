package main

import (
  "context"
  "errors"
  "net/http"
  "os"
  "os/signal"
  "syscall"

  "github.com/go-resty/resty/v2"
  log "github.com/sirupsen/logrus"
  "github.com/spf13/cast"

  "github.com/orangeflowers/maxbot/internal/analytics"
  "github.com/orangeflowers/maxbot/internal/app/bot"
  "github.com/orangeflowers/maxbot/internal/app/web"
  "github.com/orangeflowers/maxbot/internal/config"
  "github.com/orangeflowers/maxbot/internal/crm"
  "github.com/orangeflowers/maxbot/internal/deps/amocrm"
  "github.com/orangeflowers/maxbot/internal/deps/amojo"
  "github.com/orangeflowers/maxbot/internal/deps/catalog"
  "github.com/orangeflowers/maxbot/internal/deps/dadata"
  "github.com/orangeflowers/maxbot/internal/deps/geocoder"
  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
  "github.com/orangeflowers/maxbot/internal/deps/storage/mongodb"
  "github.com/orangeflowers/maxbot/internal/submit"
  "github.com/orangeflowers/maxbot/internal/token"
  "github.com/orangeflowers/maxbot/pkg/logger"
  "github.com/orangeflowers/maxbot/pkg/worker"
)

func main() {
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()

  logger.Init()

  log.Warn("max bot app initializing")

  cfg, err := config.Load()
  if err != nil {
    log.Fatalf("config.Load: %v", err)
  }

  httpClient := resty.NewWithClient(http.DefaultClient)

  var storage analytics.Storage

  if cfg.MongodbHost != "" {
    mongoClient, err := mongodb.NewClient(ctx,
      mongodb.Config{
        Host: cfg.MongodbHost,
        Port: cast.ToString(cfg.MongodbPort),
        Authentication: &mongodb.Authentication{
          User:     cfg.MongodbUser,
          Password: cfg.MongodbPass,
        },
      },
      mongodb.Dependencies{
        Client: http.DefaultClient,
      })
    if err != nil {
      log.Fatalf("mongodb.NewClient: %v", err)
    }
    storage = mongoClient
  } else {
    log.Warn("mongodb is not configured: analytics kept in memory only")
  }

  tracker := analytics.NewTracker(
    analytics.Config{Database: cfg.MongodbName},
    analytics.Dependencies{Storage: storage},
  )
  if err = tracker.Init(ctx); err != nil {
    log.Fatalf("tracker.Init: %v", err)
  }

  maxClient, err := maxapi.NewClient(
    maxapi.Config{Token: cfg.BotToken},
    maxapi.Dependencies{Client: httpClient},
  )
  if err != nil {
    log.Fatalf("maxapi.NewClient: %v", err)
  }

  amoClient, err := amocrm.NewClient(
    amocrm.Config{
      BaseURL:      cfg.AmoBaseURL,
      ClientId:     cfg.AmoClientId,
      ClientSecret: cfg.AmoClientSecret,
      RedirectURI:  cfg.AmoRedirectURI,
      AccessToken:  cfg.AmoAccessToken,
      RefreshToken: cfg.AmoRefreshToken,
    },
    amocrm.Dependencies{Client: httpClient},
  )
  if err != nil {
    log.Fatalf("amocrm.NewClient: %v", err)
  }

  resolver := crm.NewResolver(crm.Dependencies{Gateway: amoClient})

  amojoClient, err := amojo.NewClient(
    amojo.Config{
      BaseURL:          cfg.AmojoBaseURL,
      ScopeId:          cfg.AmojoScopeId,
      Secret:           cfg.AmojoSecret,
      SourceExternalId: cfg.AmojoId,
    },
    amojo.Dependencies{Client: httpClient},
  )
  if err != nil {
    log.Fatalf("amojo.NewClient: %v", err)
  }

  geocoderClient := geocoder.NewClient(
    geocoder.Config{ApiKey: cfg.GeocoderApiKey},
    geocoder.Dependencies{Client: httpClient},
  )

  dadataClient := dadata.NewClient(
    dadata.Config{ApiKey: cfg.DadataApiKey},
    dadata.Dependencies{Client: httpClient},
  )

  catalogService := catalog.NewService(
    catalog.Config{FeedURL: cfg.CatalogFeedURL},
    catalog.Dependencies{Client: httpClient},
  )
  if cfg.CatalogFeedURL != "" {
    if products, err := catalogService.Refresh(ctx); err != nil {
      log.Warnf("catalogService.Refresh: %v", err)
    } else {
      log.Infof("catalog warmed up: %d products", len(products))
    }
  }

  tokens := token.NewCodec(cfg.TokenSecret)

  pool := worker.NewPool(ctx, worker.DefaultCount)

  submitService := submit.NewService(
    submit.Config{
      AdminChatId: cfg.AdminChatId,
      MenuButtons: bot.MainMenuButtons(),
    },
    submit.Dependencies{
      Messenger: maxClient,
      Bridge:    amojoClient,
      Branches:  geocoderClient,
      Deals:     resolver,
    },
  )

  botService := bot.NewService(
    bot.Config{
      AdminChatId: cfg.AdminChatId,
      WebBaseURL:  cfg.WebBaseURL,
    },
    bot.Dependencies{
      Messenger: maxClient,
      Catalog:   catalogService,
      Bridge:    amojoClient,
      CRM:       resolver,
      Tracker:   tracker,
      Submitter: submitService,
      Tokens:    tokens,
      Pool:      &pool,
    },
  )

  webServer := web.NewServer(
    web.Config{
      Port:                 cfg.WebPort,
      WebBaseURL:           cfg.WebBaseURL,
      LeadWebhookSecret:    cfg.LeadWebhookSecret,
      LeadTargetPipelineId: cfg.LeadTargetPipelineId,
      LeadTargetStatusId:   cfg.LeadTargetStatusId,
    },
    web.Dependencies{
      Tokens:    tokens,
      Submitter: submitService,
      Suggester: dadataClient,
      Messenger: maxClient,
      Bridge:    amojoClient,
      Deals:     resolver,
    },
  )

  go func() {
    if err := botService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
      log.Errorf("botService.Run: %v", err)
      cancel()
    }
  }()

  go func() {
    if err := webServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
      log.Errorf("webServer.Run: %v", err)
      cancel()
    }
  }()

  log.Warn("max bot app started")

  exitSignal := make(chan os.Signal, 1)
  signal.Notify(exitSignal, syscall.SIGINT, syscall.SIGTERM)

  select {
  case <-exitSignal:
  case <-ctx.Done():
  }

  cancel()
  pool.StopWait()

  log.Warn("max bot app terminating")
}
