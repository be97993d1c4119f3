package env

import "os"

type Env = string

const (
  DEV  Env = "DEV"
  PROD Env = "PROD"
)

func IsProduction() bool {
  return os.Getenv("ENV") == PROD
}

func Get(key, fallback string) string {
  if value := os.Getenv(key); value != "" {
    return value
  }
  return fallback
}
