package config

import (
  "fmt"

  "github.com/go-playground/validator/v10"
  "github.com/spf13/cast"

  "github.com/orangeflowers/maxbot/pkg/env"
)

type Config struct {
  BotToken string `validate:"required"`

  AmoBaseURL      string `validate:"required,url"`
  AmoClientId     string `validate:"required"`
  AmoClientSecret string `validate:"required"`
  AmoRedirectURI  string `validate:"required,url"`
  AmoAccessToken  string `validate:"required"`
  AmoRefreshToken string `validate:"required"`

  AmojoBaseURL string `validate:"required,url"`
  AmojoSecret  string
  AmojoScopeId string
  AmojoId      string

  TokenSecret string `validate:"required"`

  WebBaseURL string `validate:"required,url"`
  WebPort    int    `validate:"required"`

  LeadWebhookSecret    string
  LeadTargetPipelineId int64
  LeadTargetStatusId   int64

  GeocoderApiKey string
  DadataApiKey   string
  CatalogFeedURL string

  AdminChatId int64

  MongodbName string
  MongodbHost string
  MongodbPort int
  MongodbUser string
  MongodbPass string
}

func (c Config) Validate() error {
  if err := validator.New().Struct(c); err != nil {
    return fmt.Errorf("validator.New.Struct: %w", err)
  }
  return nil
}

func Load() (Config, error) {
  config := Config{
    BotToken: env.Get("BOT_TOKEN", ""),

    AmoBaseURL:      env.Get("AMO_BASE_URL", ""),
    AmoClientId:     env.Get("AMO_CLIENT_ID", ""),
    AmoClientSecret: env.Get("AMO_CLIENT_SECRET", ""),
    AmoRedirectURI:  env.Get("AMO_REDIRECT_URI", ""),
    AmoAccessToken:  env.Get("AMO_ACCESS_TOKEN", ""),
    AmoRefreshToken: env.Get("AMO_REFRESH_TOKEN", ""),

    AmojoBaseURL: env.Get("AMOJO_BASE_URL", "https://amojo.amocrm.ru"),
    AmojoSecret:  env.Get("AMOJO_SECRET", ""),
    AmojoScopeId: env.Get("AMOJO_SCOPE_ID", ""),
    AmojoId:      env.Get("AMOJO_ID", ""),

    TokenSecret: env.Get("ORDER_TOKEN_SECRET", ""),

    WebBaseURL: env.Get("WEB_BASE_URL", ""),
    WebPort:    cast.ToInt(env.Get("WEB_PORT", "3000")),

    LeadWebhookSecret:    env.Get("LEAD_WEBHOOK_SECRET", ""),
    LeadTargetPipelineId: cast.ToInt64(env.Get("LEAD_TARGET_PIPELINE_ID", "0")),
    LeadTargetStatusId:   cast.ToInt64(env.Get("LEAD_TARGET_STATUS_ID", "0")),

    GeocoderApiKey: env.Get("YANDEX_GEOCODER_KEY", ""),
    DadataApiKey:   env.Get("DADATA_API_KEY", ""),
    CatalogFeedURL: env.Get("CATALOG_FEED_URL", ""),

    AdminChatId: cast.ToInt64(env.Get("ADMIN_CHAT_ID", "0")),

    MongodbName: env.Get("MONGODB_NAME", ""),
    MongodbHost: env.Get("MONGODB_HOST", ""),
    MongodbPort: cast.ToInt(env.Get("MONGODB_PORT", "27017")),
    MongodbUser: env.Get("MONGODB_USER", ""),
    MongodbPass: env.Get("MONGODB_PASS", ""),
  }

  if err := config.Validate(); err != nil {
    return Config{}, fmt.Errorf("config.Validate: %w", err)
  }
  return config, nil
}
