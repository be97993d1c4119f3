package amojo

import (
  "context"
  "encoding/json"
  "fmt"
  "math/rand"
  "net/http"
  "strconv"
  "strings"
  "sync"
  "time"

  "github.com/go-playground/validator/v10"
  "github.com/go-resty/resty/v2"
  log "github.com/sirupsen/logrus"
)

const (
  botSenderId   = "bot_orange"
  botSenderName = "Бот Orange"

  conversationPrefix = "max_"
)

// Client mirrors the messenger conversation into the amoCRM chat API.
type Client struct {
  config Config
  deps   Dependencies

  mu sync.Mutex
  // chat id -> conversation_id
  conversations map[int64]string
  // user id -> cached profile
  users map[int64]userProfile
}

type userProfile struct {
  Name  string
  Phone string
}

type Config struct {
  BaseURL          string `validate:"required,url"`
  ScopeId          string `validate:"required"`
  Secret           string `validate:"required"`
  SourceExternalId string
}

func (c Config) Validate() error {
  if err := validator.New().Struct(c); err != nil {
    return fmt.Errorf("validator.New.Struct: %w", err)
  }
  return nil
}

type Dependencies struct {
  Client *resty.Client
}

func NewClient(config Config, deps Dependencies) (*Client, error) {
  if err := config.Validate(); err != nil {
    return nil, fmt.Errorf("config.Validate: %w", err)
  }

  return &Client{
    config:        config,
    deps:          deps,
    conversations: map[int64]string{},
    users:         map[int64]userProfile{},
  }, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any) (*resty.Response, error) {
  payload, err := json.Marshal(body)
  if err != nil {
    return nil, fmt.Errorf("body marshal json: %w", err)
  }

  resp, err := c.deps.Client.R().
    SetContext(ctx).
    SetHeaders(signedHeaders(method, path, payload, c.config.Secret)).
    SetBody(payload).
    Execute(method, c.config.BaseURL+path)
  if err != nil {
    return nil, fmt.Errorf("resty.Request.Execute: %w", err)
  }

  return resp, nil
}

func conversationId(chatId int64) string {
  return conversationPrefix + strconv.FormatInt(chatId, 10)
}

// MaxChatId maps a chat API conversation id back to the messenger
// chat id.
func MaxChatId(conversation string) (int64, bool) {
  value, ok := strings.CutPrefix(conversation, conversationPrefix)
  if !ok {
    return 0, false
  }

  chatId, err := strconv.ParseInt(value, 10, 64)
  if err != nil {
    return 0, false
  }
  return chatId, true
}

type chatCreated struct {
  Id      string `json:"id"`
  Contact struct {
    Id int64 `json:"id"`
  } `json:"contact"`
}

type GetOrCreateChatParams struct {
  ChatId   int64
  UserId   int64
  UserName string
}

type GetOrCreateChatResult struct {
  ConversationId string
}

// GetOrCreateChat registers the conversation on the chat API side.
// A 409 means it already exists, which is fine.
func (c *Client) GetOrCreateChat(ctx context.Context, params GetOrCreateChatParams) (*GetOrCreateChatResult, error) {
  c.mu.Lock()
  if conversation, ok := c.conversations[params.ChatId]; ok {
    c.mu.Unlock()
    return &GetOrCreateChatResult{ConversationId: conversation}, nil
  }

  displayName := params.UserName
  if displayName == "" {
    displayName = fmt.Sprintf("Пользователь MAX #%d", params.UserId)
  } else {
    c.users[params.UserId] = userProfile{Name: params.UserName}
  }
  c.mu.Unlock()

  conversation := conversationId(params.ChatId)
  path := fmt.Sprintf("/v2/origin/custom/%s/chats", c.config.ScopeId)

  body := map[string]any{
    "conversation_id": conversation,
    "source": map[string]string{
      "external_id": c.config.SourceExternalId,
    },
    "user": map[string]any{
      "id":   fmt.Sprintf("max_user_%d", params.UserId),
      "name": displayName,
      "profile": map[string]string{
        "phone": "",
        "email": "",
      },
    },
  }

  resp, err := c.call(ctx, resty.MethodPost, path, body)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }

  if resp.StatusCode() == http.StatusConflict {
    c.rememberConversation(params.ChatId, conversation)
    log.Infof("amojo.Client.GetOrCreateChat: conversation %s already exists", conversation)

    return &GetOrCreateChatResult{ConversationId: conversation}, nil
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    return nil, fmt.Errorf("amojo response: status %d: %s", resp.StatusCode(), resp.Body())
  }

  c.rememberConversation(params.ChatId, conversation)

  var created chatCreated
  if err = json.Unmarshal(resp.Body(), &created); err != nil {
    return nil, fmt.Errorf("response unmarshal json: %w", err)
  }

  log.Infof("amojo.Client.GetOrCreateChat: conversation %s created, contact %d",
    conversation, created.Contact.Id)

  return &GetOrCreateChatResult{ConversationId: conversation}, nil
}

func (c *Client) rememberConversation(chatId int64, conversation string) {
  c.mu.Lock()
  defer c.mu.Unlock()

  c.conversations[chatId] = conversation
}

func messageId(prefix string) string {
  return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(),
    strconv.FormatInt(rand.Int63(), 36))
}

type SendUserMessageParams struct {
  ChatId    int64
  UserId    int64
  Text      string
  UserName  string
  UserPhone string
}

// SendUserMessage relays an inbound customer message so managers see
// it in the CRM chat. Returns the message id.
func (c *Client) SendUserMessage(ctx context.Context, params SendUserMessageParams) (string, error) {
  created, err := c.GetOrCreateChat(ctx, GetOrCreateChatParams{
    ChatId:   params.ChatId,
    UserId:   params.UserId,
    UserName: params.UserName,
  })
  if err != nil {
    return "", fmt.Errorf("c.GetOrCreateChat: %w", err)
  }

  c.mu.Lock()
  cached := c.users[params.UserId]
  if params.UserName != "" {
    cached.Name = params.UserName
  }
  if params.UserPhone != "" {
    cached.Phone = params.UserPhone
  }
  c.users[params.UserId] = cached
  c.mu.Unlock()

  displayName := cached.Name
  if displayName == "" {
    displayName = fmt.Sprintf("Пользователь MAX #%d", params.UserId)
  }

  msgId := messageId("max_msg")
  path := fmt.Sprintf("/v2/origin/custom/%s", c.config.ScopeId)

  body := map[string]any{
    "event_type": "new_message",
    "payload": map[string]any{
      "timestamp":       time.Now().Unix(),
      "msgid":           msgId,
      "conversation_id": created.ConversationId,
      "source": map[string]string{
        "external_id": c.config.SourceExternalId,
      },
      "sender": map[string]any{
        "id":   fmt.Sprintf("max_user_%d", params.UserId),
        "name": displayName,
        "profile": map[string]string{
          "phone": cached.Phone,
          "email": "",
        },
      },
      "message": map[string]string{
        "type": "text",
        "text": params.Text,
      },
      "silent": false,
    },
  }

  resp, err := c.call(ctx, resty.MethodPost, path, body)
  if err != nil {
    return "", fmt.Errorf("c.call: %w", err)
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    return "", fmt.Errorf("amojo response: status %d: %s", resp.StatusCode(), resp.Body())
  }

  return msgId, nil
}

// SendBotMessage relays the bot's own reply into the CRM chat.
func (c *Client) SendBotMessage(ctx context.Context, chatId int64, text string) (string, error) {
  c.mu.Lock()
  conversation, ok := c.conversations[chatId]
  c.mu.Unlock()

  if !ok {
    conversation = conversationId(chatId)
  }

  msgId := messageId("max_bot_msg")
  path := fmt.Sprintf("/v2/origin/custom/%s", c.config.ScopeId)

  body := map[string]any{
    "event_type": "new_message",
    "payload": map[string]any{
      "timestamp":       time.Now().Unix(),
      "msgid":           msgId,
      "conversation_id": conversation,
      "source": map[string]string{
        "external_id": c.config.SourceExternalId,
      },
      "sender": map[string]any{
        "id":   botSenderId,
        "name": botSenderName,
        "profile": map[string]string{
          "phone": "",
          "email": "",
        },
      },
      "message": map[string]string{
        "type": "text",
        "text": text,
      },
      "silent": false,
    },
  }

  resp, err := c.call(ctx, resty.MethodPost, path, body)
  if err != nil {
    return "", fmt.Errorf("c.call: %w", err)
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    return "", fmt.Errorf("amojo response: status %d: %s", resp.StatusCode(), resp.Body())
  }

  return msgId, nil
}

// SendDeliveryStatus confirms a manager message reached the user.
func (c *Client) SendDeliveryStatus(ctx context.Context, msgId string) {
  path := fmt.Sprintf("/v2/origin/custom/%s/%s/delivery_status", c.config.ScopeId, msgId)

  resp, err := c.call(ctx, resty.MethodPost, path, map[string]string{"status": "delivered"})
  if err != nil {
    log.Warnf("amojo.Client.SendDeliveryStatus: c.call: %v", err)
    return
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    log.Warnf("amojo.Client.SendDeliveryStatus: status %d", resp.StatusCode())
  }
}

// VerifySignature checks an inbound webhook body against the channel
// secret.
func (c *Client) VerifySignature(body []byte, signature string) bool {
  return VerifyWebhookSignature(body, signature, c.config.Secret)
}
