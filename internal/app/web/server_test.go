package web

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "net/http"
  "net/http/httptest"
  "net/url"
  "strings"
  "sync"
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/orangeflowers/maxbot/internal/deps/dadata"
  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
  "github.com/orangeflowers/maxbot/internal/models"
  "github.com/orangeflowers/maxbot/internal/submit"
)

type fakeTokens struct {
  data *models.TokenData
  err  error
}

func (f *fakeTokens) Verify(token string) (*models.TokenData, error) {
  if f.err != nil {
    return nil, f.err
  }
  return f.data, nil
}

func (f *fakeTokens) GenerateDeal(dealId int64) string {
  return "deal-token"
}

type fakeSubmitter struct {
  mu sync.Mutex

  orders  []submit.SubmitParams
  leads   []*models.Order
  leadIds []int64
  err     error
}

func (f *fakeSubmitter) Submit(ctx context.Context, params submit.SubmitParams) error {
  f.mu.Lock()
  defer f.mu.Unlock()
  f.orders = append(f.orders, params)
  return f.err
}

func (f *fakeSubmitter) SubmitLead(ctx context.Context, order *models.Order, leadId int64) error {
  f.mu.Lock()
  defer f.mu.Unlock()
  f.leads = append(f.leads, order)
  f.leadIds = append(f.leadIds, leadId)
  return f.err
}

type fakeSuggester struct {
  suggestions []dadata.Suggestion
  queries     []string
}

func (f *fakeSuggester) SuggestAddress(ctx context.Context, query string, count int) ([]dadata.Suggestion, error) {
  f.queries = append(f.queries, query)
  return f.suggestions, nil
}

type fakeMessenger struct {
  mu sync.Mutex

  sent   []maxapi.SendMessageParams
  typing []int64
}

func (f *fakeMessenger) SendMessage(ctx context.Context, params maxapi.SendMessageParams) error {
  f.mu.Lock()
  defer f.mu.Unlock()
  f.sent = append(f.sent, params)
  return nil
}

func (f *fakeMessenger) SendTyping(ctx context.Context, chatId int64) {
  f.mu.Lock()
  defer f.mu.Unlock()
  f.typing = append(f.typing, chatId)
}

type fakeBridge struct {
  validSignature bool
  delivered      []string
}

func (f *fakeBridge) VerifySignature(body []byte, signature string) bool {
  return f.validSignature
}

func (f *fakeBridge) SendDeliveryStatus(ctx context.Context, msgId string) {
  f.delivered = append(f.delivered, msgId)
}

type fakeDeals struct {
  links map[int64]string
  err   error
}

func (f *fakeDeals) SetLeadFormLink(ctx context.Context, leadId int64, url string) error {
  if f.err != nil {
    return f.err
  }
  if f.links == nil {
    f.links = map[int64]string{}
  }
  f.links[leadId] = url
  return nil
}

type testServer struct {
  server    *Server
  tokens    *fakeTokens
  submitter *fakeSubmitter
  suggester *fakeSuggester
  messenger *fakeMessenger
  bridge    *fakeBridge
  deals     *fakeDeals
}

func newTestServer(t *testing.T) *testServer {
  t.Helper()

  env := &testServer{
    tokens: &fakeTokens{
      data: &models.TokenData{Kind: models.TokenKindChat, ChatId: 100, UserId: 200},
    },
    submitter: &fakeSubmitter{},
    suggester: &fakeSuggester{},
    messenger: &fakeMessenger{},
    bridge:    &fakeBridge{validSignature: true},
    deals:     &fakeDeals{},
  }

  env.server = NewServer(
    Config{
      Port:                 8080,
      WebBaseURL:           "https://flowers.example",
      LeadWebhookSecret:    "hook-secret",
      LeadTargetPipelineId: 7524102,
      LeadTargetStatusId:   61597534,
    },
    Dependencies{
      Tokens:    env.tokens,
      Submitter: env.submitter,
      Suggester: env.suggester,
      Messenger: env.messenger,
      Bridge:    env.bridge,
      Deals:     env.deals,
    },
  )

  return env
}

func (e *testServer) do(req *http.Request) *httptest.ResponseRecorder {
  recorder := httptest.NewRecorder()
  e.server.routes().ServeHTTP(recorder, req)
  return recorder
}

func postJSON(t *testing.T, path string, body any) *http.Request {
  t.Helper()

  raw, err := json.Marshal(body)
  require.NoError(t, err)

  req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
  req.Header.Set("Content-Type", "application/json")
  return req
}

func decodeOrderResponse(t *testing.T, recorder *httptest.ResponseRecorder) orderResponse {
  t.Helper()

  var response orderResponse
  require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
  return response
}

func validOrderBody() map[string]any {
  return map[string]any{
    "token":          "tok",
    "orderType":      "delivery",
    "date":           "2026-03-08",
    "time":           "12:00 - 13:00",
    "address":        "ул. Стара Загора, 25",
    "yourName":       "Анна",
    "yourPhone":      "+79991234567",
    "recipientName":  "Мария",
    "recipientPhone": "+79997654321",
  }
}

func TestOrderPageRedirectsWithoutToken(t *testing.T) {
  env := newTestServer(t)

  recorder := env.do(httptest.NewRequest(http.MethodGet, "/order", nil))

  require.Equal(t, http.StatusFound, recorder.Code)
  assert.Equal(t, "/expired.html", recorder.Header().Get("Location"))
}

func TestOrderPageRedirectsOnBadToken(t *testing.T) {
  env := newTestServer(t)
  env.tokens.err = errors.New("token expired")

  recorder := env.do(httptest.NewRequest(http.MethodGet, "/order?t=stale", nil))

  require.Equal(t, http.StatusFound, recorder.Code)
  assert.Equal(t, "/expired.html", recorder.Header().Get("Location"))
}

func TestOrderPageServesForm(t *testing.T) {
  env := newTestServer(t)

  recorder := env.do(httptest.NewRequest(http.MethodGet, "/order?t=tok", nil))

  require.Equal(t, http.StatusOK, recorder.Code)
  assert.Contains(t, recorder.Body.String(), "order-form")
}

func TestOrderSubmitDelivery(t *testing.T) {
  env := newTestServer(t)

  recorder := env.do(postJSON(t, "/api/order", validOrderBody()))

  require.Equal(t, http.StatusOK, recorder.Code)
  response := decodeOrderResponse(t, recorder)
  assert.True(t, response.Success)
  assert.Equal(t, "Заказ успешно отправлен!", response.Message)

  require.Len(t, env.submitter.orders, 1)
  params := env.submitter.orders[0]
  assert.Equal(t, submit.SourceWeb, params.Source)
  assert.Equal(t, int64(100), params.Order.ChatId)
  assert.Equal(t, int64(200), params.Order.UserId)
  assert.Equal(t, models.OrderTypeDelivery, params.Order.Type)
  assert.Equal(t, "ул. Стара Загора, 25", params.Order.Address)
  assert.Equal(t, "Без подписи", params.Order.CardText)
}

func TestOrderSubmitDealToken(t *testing.T) {
  env := newTestServer(t)
  env.tokens.data = &models.TokenData{Kind: models.TokenKindDeal, DealId: 555}

  recorder := env.do(postJSON(t, "/api/order", validOrderBody()))

  require.Equal(t, http.StatusOK, recorder.Code)
  require.Len(t, env.submitter.leadIds, 1)
  assert.Equal(t, int64(555), env.submitter.leadIds[0])
  assert.Empty(t, env.submitter.orders)
}

func TestOrderSubmitPickupUsesBranch(t *testing.T) {
  env := newTestServer(t)

  body := validOrderBody()
  body["orderType"] = "pickup"
  body["branch"] = "ул. Гагарина, 82"
  delete(body, "address")

  recorder := env.do(postJSON(t, "/api/order", body))

  require.Equal(t, http.StatusOK, recorder.Code)
  require.Len(t, env.submitter.orders, 1)
  o := env.submitter.orders[0].Order
  assert.Equal(t, models.OrderTypePickup, o.Type)
  assert.Equal(t, "ул. Гагарина, 82", o.Address)
  assert.True(t, o.SelfRecipient)
  assert.Equal(t, "Анна", o.RecipientName)
}

func TestOrderSubmitRejectsExpiredToken(t *testing.T) {
  env := newTestServer(t)
  env.tokens.err = errors.New("signature mismatch")

  recorder := env.do(postJSON(t, "/api/order", validOrderBody()))

  require.Equal(t, http.StatusBadRequest, recorder.Code)
  response := decodeOrderResponse(t, recorder)
  assert.False(t, response.Success)
  assert.Contains(t, response.Error, "Ссылка устарела")
  assert.Empty(t, env.submitter.orders)
}

func TestOrderSubmitRejectsMissingFields(t *testing.T) {
  env := newTestServer(t)

  body := validOrderBody()
  delete(body, "yourPhone")
  delete(body, "date")

  recorder := env.do(postJSON(t, "/api/order", body))

  require.Equal(t, http.StatusBadRequest, recorder.Code)
  response := decodeOrderResponse(t, recorder)
  assert.Contains(t, response.Error, "Заполните обязательные поля")
  assert.Contains(t, response.Error, "yourPhone")
  assert.Contains(t, response.Error, "date")
}

func TestOrderSubmitRequiresDeliveryAddress(t *testing.T) {
  env := newTestServer(t)

  body := validOrderBody()
  delete(body, "address")

  recorder := env.do(postJSON(t, "/api/order", body))

  require.Equal(t, http.StatusBadRequest, recorder.Code)
  response := decodeOrderResponse(t, recorder)
  assert.Equal(t, "Укажите адрес доставки", response.Error)
}

func TestOrderSubmitAskRecipientAddress(t *testing.T) {
  env := newTestServer(t)

  body := validOrderBody()
  delete(body, "address")
  body["askRecipientAddress"] = true

  recorder := env.do(postJSON(t, "/api/order", body))

  require.Equal(t, http.StatusOK, recorder.Code)
  require.Len(t, env.submitter.orders, 1)
  o := env.submitter.orders[0].Order
  assert.Equal(t, "Узнать у получателя", o.Address)
  assert.True(t, o.AskRecipientAddress)
}

func TestOrderSubmitReportsSubmitterFailure(t *testing.T) {
  env := newTestServer(t)
  env.submitter.err = errors.New("crm unavailable")

  recorder := env.do(postJSON(t, "/api/order", validOrderBody()))

  require.Equal(t, http.StatusInternalServerError, recorder.Code)
  response := decodeOrderResponse(t, recorder)
  assert.Contains(t, response.Error, "Попробуйте позже")
}

func TestAddressSuggestShortQuery(t *testing.T) {
  env := newTestServer(t)

  recorder := env.do(httptest.NewRequest(http.MethodGet, "/api/address-suggest?q=ул", nil))

  require.Equal(t, http.StatusOK, recorder.Code)
  var response suggestResponse
  require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
  assert.Empty(t, response.Suggestions)
  assert.Empty(t, env.suggester.queries)
}

func TestAddressSuggestProxies(t *testing.T) {
  env := newTestServer(t)
  env.suggester.suggestions = []dadata.Suggestion{
    {
      Value: "г Самара, ул Стара Загора, д 25",
      Data:  dadata.SuggestionData{City: "Самара"},
    },
  }

  query := url.QueryEscape("Стара Загора")
  recorder := env.do(httptest.NewRequest(http.MethodGet, "/api/address-suggest?q="+query, nil))

  require.Equal(t, http.StatusOK, recorder.Code)
  var response suggestResponse
  require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
  require.Len(t, response.Suggestions, 1)
  assert.Equal(t, "г Самара, ул Стара Загора, д 25", response.Suggestions[0].Value)
  assert.Equal(t, "Самара", response.Suggestions[0].City)
}

func amoWebhookBody(messageType, text, clientId string) map[string]any {
  message := map[string]any{
    "id":   "msg-1",
    "type": messageType,
    "text": text,
  }
  return map[string]any{
    "message": map[string]any{
      "conversation": map[string]any{
        "id":        "conv-1",
        "client_id": clientId,
      },
      "sender":  map[string]any{"name": "Менеджер"},
      "message": message,
    },
  }
}

func TestAmoWebhookRelaysText(t *testing.T) {
  env := newTestServer(t)

  recorder := env.do(postJSON(t, "/api/amo/webhook", amoWebhookBody("text", "Добрый день!", "max_100")))

  require.Equal(t, http.StatusOK, recorder.Code)
  require.Len(t, env.messenger.sent, 1)
  assert.Equal(t, int64(100), env.messenger.sent[0].ChatId)
  assert.Equal(t, "Добрый день!", env.messenger.sent[0].Text)
  assert.Equal(t, []string{"msg-1"}, env.bridge.delivered)
}

func TestAmoWebhookRejectsBadSignature(t *testing.T) {
  env := newTestServer(t)
  env.bridge.validSignature = false

  recorder := env.do(postJSON(t, "/api/amo/webhook", amoWebhookBody("text", "привет", "max_100")))

  require.Equal(t, http.StatusUnauthorized, recorder.Code)
  assert.Empty(t, env.messenger.sent)
}

func TestAmoWebhookVoiceFallbackText(t *testing.T) {
  env := newTestServer(t)

  recorder := env.do(postJSON(t, "/api/amo/webhook", amoWebhookBody("voice", "", "max_100")))

  require.Equal(t, http.StatusOK, recorder.Code)
  require.Len(t, env.messenger.sent, 1)
  assert.Contains(t, env.messenger.sent[0].Text, "Голосовое сообщение")
}

func TestAmoWebhookIgnoresForeignConversation(t *testing.T) {
  env := newTestServer(t)

  recorder := env.do(postJSON(t, "/api/amo/webhook", amoWebhookBody("text", "привет", "tg_100")))

  require.Equal(t, http.StatusOK, recorder.Code)
  assert.Empty(t, env.messenger.sent)
}

func TestTypingWebhook(t *testing.T) {
  env := newTestServer(t)

  body := map[string]any{
    "conversation": map[string]any{"id": "max_100"},
  }
  recorder := env.do(postJSON(t, "/api/amo/typing", body))

  require.Equal(t, http.StatusOK, recorder.Code)
  assert.Equal(t, []int64{100}, env.messenger.typing)
}

func TestLeadStatusWebhookWritesFormLink(t *testing.T) {
  env := newTestServer(t)

  body := map[string]any{
    "leads": map[string]any{
      "status": []map[string]any{
        {"id": 555, "status_id": 61597534, "pipeline_id": 7524102},
      },
    },
  }
  recorder := env.do(postJSON(t, "/api/amo/lead-status?secret=hook-secret", body))

  require.Equal(t, http.StatusOK, recorder.Code)
  assert.Equal(t, "https://flowers.example/order?t=deal-token", env.deals.links[555])
}

func TestLeadStatusWebhookSkipsOtherStatuses(t *testing.T) {
  env := newTestServer(t)

  body := map[string]any{
    "leads": map[string]any{
      "status": []map[string]any{
        {"id": 555, "status_id": 123, "pipeline_id": 7524102},
      },
    },
  }
  recorder := env.do(postJSON(t, "/api/amo/lead-status?secret=hook-secret", body))

  require.Equal(t, http.StatusOK, recorder.Code)
  assert.Empty(t, env.deals.links)
}

func TestLeadStatusWebhookRejectsBadSecret(t *testing.T) {
  env := newTestServer(t)

  recorder := env.do(postJSON(t, "/api/amo/lead-status?secret=wrong", map[string]any{}))

  require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestLeadStatusWebhookParsesFormBody(t *testing.T) {
  env := newTestServer(t)

  form := url.Values{}
  form.Set("leads[status][0][id]", "777")
  form.Set("leads[status][0][status_id]", "61597534")
  form.Set("leads[status][0][pipeline_id]", "7524102")

  req := httptest.NewRequest(http.MethodPost, "/api/amo/lead-status?secret=hook-secret",
    strings.NewReader(form.Encode()))
  req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

  recorder := env.do(req)

  require.Equal(t, http.StatusOK, recorder.Code)
  assert.Equal(t, "https://flowers.example/order?t=deal-token", env.deals.links[777])
}
