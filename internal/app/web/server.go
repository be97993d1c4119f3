package web

import (
  "context"
  "embed"
  "encoding/json"
  "fmt"
  "net/http"
  "time"

  log "github.com/sirupsen/logrus"

  "github.com/orangeflowers/maxbot/internal/deps/dadata"
  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
  "github.com/orangeflowers/maxbot/internal/models"
  "github.com/orangeflowers/maxbot/internal/submit"
)

//go:embed static
var staticFiles embed.FS

type Tokens interface {
  Verify(token string) (*models.TokenData, error)
  GenerateDeal(dealId int64) string
}

type Submitter interface {
  Submit(ctx context.Context, params submit.SubmitParams) error
  SubmitLead(ctx context.Context, order *models.Order, leadId int64) error
}

type AddressSuggester interface {
  SuggestAddress(ctx context.Context, query string, count int) ([]dadata.Suggestion, error)
}

type Messenger interface {
  SendMessage(ctx context.Context, params maxapi.SendMessageParams) error
  SendTyping(ctx context.Context, chatId int64)
}

type Bridge interface {
  VerifySignature(body []byte, signature string) bool
  SendDeliveryStatus(ctx context.Context, msgId string)
}

type Deals interface {
  SetLeadFormLink(ctx context.Context, leadId int64, url string) error
}

// Server is the public web boundary: the order form, the DaData proxy
// and the amoCRM webhooks.
type Server struct {
  config Config
  deps   Dependencies

  http *http.Server
}

type Config struct {
  Port int

  // WebBaseURL is the public base for generated form links.
  WebBaseURL string

  // LeadWebhookSecret guards /api/amo/lead-status. Empty allows all.
  LeadWebhookSecret string

  LeadTargetPipelineId int64
  LeadTargetStatusId   int64
}

type Dependencies struct {
  Tokens    Tokens
  Submitter Submitter
  Suggester AddressSuggester
  Messenger Messenger
  Bridge    Bridge
  Deals     Deals
}

func NewServer(config Config, deps Dependencies) *Server {
  server := &Server{
    config: config,
    deps:   deps,
  }
  server.http = &http.Server{
    Addr:              fmt.Sprintf(":%d", config.Port),
    Handler:           server.routes(),
    ReadHeaderTimeout: 10 * time.Second,
  }

  return server
}

func (s *Server) routes() http.Handler {
  mux := http.NewServeMux()

  mux.HandleFunc("/order", s.handleOrderPage)
  mux.HandleFunc("/success", s.servePage("static/success.html"))
  mux.HandleFunc("/expired.html", s.servePage("static/expired.html"))

  mux.HandleFunc("/api/order", s.handleOrderSubmit)
  mux.HandleFunc("/api/address-suggest", s.handleAddressSuggest)

  mux.HandleFunc("/api/amo/webhook", s.handleAmoWebhook)
  mux.HandleFunc("/api/amo/webhook/", s.handleAmoWebhook)
  mux.HandleFunc("/api/amo/typing", s.handleTypingWebhook)
  mux.HandleFunc("/api/amo/typing/", s.handleTypingWebhook)
  mux.HandleFunc("/api/amo/lead-status", s.handleLeadStatusWebhook)

  return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
  errCh := make(chan error, 1)

  go func() {
    log.Infof("web.Server.Run: listening on %s", s.http.Addr)

    if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
      errCh <- err
    }
  }()

  select {
  case err := <-errCh:
    return fmt.Errorf("http.Server.ListenAndServe: %w", err)

  case <-ctx.Done():
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()

    if err := s.http.Shutdown(shutdownCtx); err != nil {
      return fmt.Errorf("http.Server.Shutdown: %w", err)
    }
    return ctx.Err()
  }
}

func (s *Server) servePage(name string) http.HandlerFunc {
  return func(w http.ResponseWriter, r *http.Request) {
    page, err := staticFiles.ReadFile(name)
    if err != nil {
      log.Errorf("web.Server.servePage: staticFiles.ReadFile: %v", err)
      http.Error(w, "not found", http.StatusNotFound)
      return
    }

    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    _, _ = w.Write(page)
  }
}

func writeJSON(w http.ResponseWriter, status int, body any) {
  w.Header().Set("Content-Type", "application/json; charset=utf-8")
  w.WriteHeader(status)

  if err := json.NewEncoder(w).Encode(body); err != nil {
    log.Errorf("web: writeJSON: json.Encoder.Encode: %v", err)
  }
}
