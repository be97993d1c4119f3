package dadata

import (
  "context"
  "encoding/json"
  "fmt"
  "net/http"

  "github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://suggestions.dadata.ru/suggestions/api/4_1/rs/suggest/address"

// Client proxies address autocompletion for the order form.
type Client struct {
  config Config
  deps   Dependencies
}

type Config struct {
  ApiKey  string
  BaseURL string
}

type Dependencies struct {
  Client *resty.Client
}

func NewClient(config Config, deps Dependencies) *Client {
  if config.BaseURL == "" {
    config.BaseURL = defaultBaseURL
  }
  return &Client{config: config, deps: deps}
}

type Suggestion struct {
  Value             string         `json:"value"`
  UnrestrictedValue string         `json:"unrestricted_value"`
  Data              SuggestionData `json:"data"`
}

type SuggestionData struct {
  City       string `json:"city"`
  Street     string `json:"street"`
  House      string `json:"house"`
  Flat       string `json:"flat"`
  PostalCode string `json:"postal_code"`
  GeoLat     string `json:"geo_lat"`
  GeoLon     string `json:"geo_lon"`
}

type suggestResponse struct {
  Suggestions []Suggestion `json:"suggestions"`
}

// SuggestAddress returns address completions for a partial input.
// Queries shorter than three runes yield nothing.
func (c *Client) SuggestAddress(ctx context.Context, query string, count int) ([]Suggestion, error) {
  if c.config.ApiKey == "" || len([]rune(query)) < 3 {
    return nil, nil
  }
  if count <= 0 {
    count = 5
  }

  resp, err := c.deps.Client.R().
    SetContext(ctx).
    SetHeader("Authorization", "Token "+c.config.ApiKey).
    SetBody(map[string]any{
      "query": query,
      "count": count,
      "locations": []map[string]string{
        {"country": "Россия"},
      },
    }).
    Post(c.config.BaseURL)
  if err != nil {
    return nil, fmt.Errorf("resty.Request.Post: %w", err)
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    return nil, fmt.Errorf("dadata response: status %d", resp.StatusCode())
  }

  var parsed suggestResponse
  if err = json.Unmarshal(resp.Body(), &parsed); err != nil {
    return nil, fmt.Errorf("response unmarshal json: %w", err)
  }

  return parsed.Suggestions, nil
}
