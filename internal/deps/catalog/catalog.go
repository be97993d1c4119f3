package catalog

import (
  "context"
  "fmt"
  "net/http"
  "sort"
  "strings"
  "sync"
  "time"

  "github.com/go-resty/resty/v2"
  "github.com/samber/lo"
  log "github.com/sirupsen/logrus"

  "github.com/orangeflowers/maxbot/internal/models"
)

const defaultCacheTTL = 30 * time.Minute

// Service loads the shop's YML feed and answers product lookups over
// a cached snapshot.
type Service struct {
  config Config
  deps   Dependencies

  mu        sync.Mutex
  products  []models.Product
  refreshed time.Time
}

type Config struct {
  FeedURL  string
  CacheTTL time.Duration
}

type Dependencies struct {
  Client *resty.Client
}

func NewService(config Config, deps Dependencies) *Service {
  if config.CacheTTL == 0 {
    config.CacheTTL = defaultCacheTTL
  }
  return &Service{config: config, deps: deps}
}

// Products returns the cached catalog, refetching the feed when the
// cache has gone stale. A failed refresh falls back to the stale
// snapshot when one exists.
func (s *Service) Products(ctx context.Context) ([]models.Product, error) {
  s.mu.Lock()
  defer s.mu.Unlock()

  fresh := time.Since(s.refreshed) < s.config.CacheTTL
  if fresh && len(s.products) != 0 {
    return s.products, nil
  }

  products, err := s.fetch(ctx)
  if err != nil {
    if len(s.products) != 0 {
      log.Errorf("catalog.Service.Products: s.fetch: %v: serving stale catalog", err)
      return s.products, nil
    }
    return nil, fmt.Errorf("s.fetch: %w", err)
  }

  s.products = products
  s.refreshed = time.Now()

  log.Infof("catalog.Service.Products: catalog refreshed: %d products", len(products))

  return s.products, nil
}

// Refresh drops the cache and reloads the feed.
func (s *Service) Refresh(ctx context.Context) ([]models.Product, error) {
  s.mu.Lock()
  s.refreshed = time.Time{}
  s.mu.Unlock()

  return s.Products(ctx)
}

func (s *Service) fetch(ctx context.Context) ([]models.Product, error) {
  if s.config.FeedURL == "" {
    return nil, fmt.Errorf("feed url is not configured")
  }

  resp, err := s.deps.Client.R().
    SetContext(ctx).
    Get(s.config.FeedURL)
  if err != nil {
    return nil, fmt.Errorf("resty.Request.Get: %w", err)
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    return nil, fmt.Errorf("feed response: status %d", resp.StatusCode())
  }

  products, err := parseFeed(resp.Body())
  if err != nil {
    return nil, fmt.Errorf("parseFeed: %w", err)
  }
  return products, nil
}

// FetchImage downloads a product picture so it can be re-uploaded
// into the messenger.
func (s *Service) FetchImage(ctx context.Context, url string) ([]byte, error) {
  resp, err := s.deps.Client.R().
    SetContext(ctx).
    Get(url)
  if err != nil {
    return nil, fmt.Errorf("resty.Request.Get: %w", err)
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    return nil, fmt.Errorf("image response: status %d", resp.StatusCode())
  }
  return resp.Body(), nil
}

// Keyword families boosting flower-specific searches.
var searchKeywords = map[string][]string{
  "роз":         {"роза", "розы", "розовый"},
  "гортенз":     {"гортензия", "гортензии"},
  "пион":        {"пион", "пионы", "пионовидный"},
  "тюльпан":     {"тюльпан", "тюльпаны"},
  "хризантем":   {"хризантема", "хризантемы"},
  "свадеб":      {"свадебный", "свадьба", "невеста"},
  "день рожден": {"день рождения", "др"},
  "букет":       {"букет", "композиция"},
}

func scoreProduct(product models.Product, query string, words []string) int {
  title := strings.ToLower(product.Title)
  fullName := strings.ToLower(product.FullName)
  description := strings.ToLower(product.Description)

  score := 0

  if strings.Contains(title, query) {
    score += 100
  }

  for _, word := range words {
    if len([]rune(word)) < 2 {
      continue
    }
    if strings.Contains(title, word) {
      score += 30
    }
    if strings.Contains(fullName, word) {
      score += 20
    }
    if strings.Contains(description, word) {
      score += 10
    }
  }

  for key, variants := range searchKeywords {
    if !strings.Contains(query, key) {
      continue
    }
    for _, variant := range variants {
      if strings.Contains(title, variant) || strings.Contains(fullName, variant) {
        score += 50
        break
      }
    }
  }

  return score
}

// Search ranks catalog products against the query. An empty query
// returns a random sample.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
  products, err := s.Products(ctx)
  if err != nil {
    return nil, fmt.Errorf("s.Products: %w", err)
  }
  if limit <= 0 {
    limit = 5
  }

  query = strings.ToLower(strings.TrimSpace(query))
  if len([]rune(query)) < 2 {
    return lo.Samples(products, limit), nil
  }

  words := strings.Fields(query)

  type scored struct {
    product models.Product
    score   int
  }

  matches := lo.FilterMap(products, func(product models.Product, _ int) (scored, bool) {
    score := scoreProduct(product, query, words)
    return scored{product: product, score: score}, score > 0
  })

  sort.SliceStable(matches, func(i, j int) bool {
    return matches[i].score > matches[j].score
  })

  if len(matches) > limit {
    matches = matches[:limit]
  }

  return lo.Map(matches, func(match scored, _ int) models.Product {
    return match.product
  }), nil
}

