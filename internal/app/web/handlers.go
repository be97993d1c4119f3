package web

import (
  "encoding/json"
  "net/http"
  "strings"

  log "github.com/sirupsen/logrus"

  "github.com/orangeflowers/maxbot/internal/models"
  "github.com/orangeflowers/maxbot/internal/order"
  "github.com/orangeflowers/maxbot/internal/submit"
  "github.com/orangeflowers/maxbot/pkg/stringer"
)

type orderResponse struct {
  Success bool   `json:"success"`
  Message string `json:"message,omitempty"`
  Error   string `json:"error,omitempty"`
}

// handleOrderPage serves the form when the link token is still good
// and bounces to the expired page otherwise.
func (s *Server) handleOrderPage(w http.ResponseWriter, r *http.Request) {
  token := r.URL.Query().Get("t")
  if token == "" {
    http.Redirect(w, r, "/expired.html", http.StatusFound)
    return
  }

  if _, err := s.deps.Tokens.Verify(token); err != nil {
    http.Redirect(w, r, "/expired.html", http.StatusFound)
    return
  }

  s.servePage("static/index.html")(w, r)
}

type orderRequest struct {
  Token string `json:"token"`

  OrderType           string `json:"orderType"`
  Date                string `json:"date"`
  Time                string `json:"time"`
  Address             string `json:"address"`
  Branch              string `json:"branch"`
  AskRecipientAddress bool   `json:"askRecipientAddress"`
  CardText            string `json:"cardText"`
  YourName            string `json:"yourName"`
  YourPhone           string `json:"yourPhone"`
  RecipientName       string `json:"recipientName"`
  RecipientPhone      string `json:"recipientPhone"`
}

func (r *orderRequest) orderType() models.OrderType {
  if r.OrderType == string(models.OrderTypePickup) {
    return models.OrderTypePickup
  }
  return models.OrderTypeDelivery
}

// validate returns the list of missing required fields.
func (r *orderRequest) validate() []string {
  required := map[string]string{
    "date":      r.Date,
    "time":      r.Time,
    "yourName":  r.YourName,
    "yourPhone": r.YourPhone,
  }
  if r.orderType() == models.OrderTypePickup {
    required["branch"] = r.Branch
  }

  var missing []string
  for field, value := range required {
    if strings.TrimSpace(value) == "" {
      missing = append(missing, field)
    }
  }
  return missing
}

// toOrder normalizes the form payload into an order, sanitizing the
// free-text fields.
func (r *orderRequest) toOrder() *models.Order {
  clean := stringer.SanitizeString

  o := &models.Order{
    Type:      r.orderType(),
    Date:      clean(r.Date),
    Time:      clean(r.Time),
    CardText:  clean(r.CardText),
    YourName:  clean(r.YourName),
    YourPhone: clean(r.YourPhone),
  }
  if o.CardText == "" {
    o.CardText = order.DefaultCardText
  }

  switch o.Type {
  case models.OrderTypePickup:
    o.Address = clean(r.Branch)
    o.RecipientName = o.YourName
    o.RecipientPhone = o.YourPhone
    o.SelfRecipient = true

  default:
    o.Address = clean(r.Address)
    if r.AskRecipientAddress {
      o.Address = order.AskRecipientAddressText
      o.AskRecipientAddress = true
    }
    o.RecipientName = clean(r.RecipientName)
    o.RecipientPhone = clean(r.RecipientPhone)
  }

  return o
}

func (s *Server) handleOrderSubmit(w http.ResponseWriter, r *http.Request) {
  if r.Method != http.MethodPost {
    writeJSON(w, http.StatusMethodNotAllowed, orderResponse{Success: false, Error: "Метод не поддерживается"})
    return
  }

  var request orderRequest
  if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
    writeJSON(w, http.StatusBadRequest, orderResponse{Success: false, Error: "Некорректный запрос"})
    return
  }

  tokenData, err := s.deps.Tokens.Verify(request.Token)
  if err != nil {
    writeJSON(w, http.StatusBadRequest, orderResponse{
      Success: false,
      Error:   "Ссылка устарела. Пожалуйста, запросите новую.",
    })
    return
  }

  if missing := request.validate(); len(missing) > 0 {
    writeJSON(w, http.StatusBadRequest, orderResponse{
      Success: false,
      Error:   "Заполните обязательные поля: " + strings.Join(missing, ", "),
    })
    return
  }

  if request.orderType() == models.OrderTypeDelivery &&
    !request.AskRecipientAddress && strings.TrimSpace(request.Address) == "" {
    writeJSON(w, http.StatusBadRequest, orderResponse{
      Success: false,
      Error:   "Укажите адрес доставки",
    })
    return
  }

  o := request.toOrder()

  switch tokenData.Kind {
  case models.TokenKindDeal:
    err = s.deps.Submitter.SubmitLead(r.Context(), o, tokenData.DealId)

  default:
    o.ChatId = tokenData.ChatId
    o.UserId = tokenData.UserId
    err = s.deps.Submitter.Submit(r.Context(), submit.SubmitParams{
      Order:  o,
      Source: submit.SourceWeb,
    })
  }
  if err != nil {
    log.Errorf("web.Server.handleOrderSubmit: %v", err)
    writeJSON(w, http.StatusInternalServerError, orderResponse{
      Success: false,
      Error:   "Произошла ошибка. Попробуйте позже.",
    })
    return
  }

  writeJSON(w, http.StatusOK, orderResponse{Success: true, Message: "Заказ успешно отправлен!"})
}

type suggestResponse struct {
  Suggestions []suggestItem `json:"suggestions"`
}

type suggestItem struct {
  Value string `json:"value"`
  City  string `json:"city"`
}

// handleAddressSuggest proxies address autocomplete to DaData so the
// API key never reaches the browser.
func (s *Server) handleAddressSuggest(w http.ResponseWriter, r *http.Request) {
  query := r.URL.Query().Get("q")

  if len([]rune(query)) < 3 {
    writeJSON(w, http.StatusOK, suggestResponse{Suggestions: []suggestItem{}})
    return
  }

  suggestions, err := s.deps.Suggester.SuggestAddress(r.Context(), query, 5)
  if err != nil {
    log.Errorf("web.Server.handleAddressSuggest: suggester.SuggestAddress: %v", err)
    writeJSON(w, http.StatusInternalServerError, orderResponse{Success: false, Error: "Ошибка сервера"})
    return
  }

  items := make([]suggestItem, 0, len(suggestions))
  for _, suggestion := range suggestions {
    items = append(items, suggestItem{
      Value: suggestion.Value,
      City:  suggestion.Data.City,
    })
  }

  writeJSON(w, http.StatusOK, suggestResponse{Suggestions: items})
}
