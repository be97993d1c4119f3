package maxapi

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "net/http"
  "strconv"
  "time"

  "github.com/go-playground/validator/v10"
  "github.com/go-resty/resty/v2"
  log "github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://platform-api.max.ru"

// Client talks to the MAX bot platform API.
type Client struct {
  config Config
  deps   Dependencies
}

type Config struct {
  Token   string `validate:"required"`
  BaseURL string `validate:"required,url"`
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
  if config.BaseURL == "" {
    config.BaseURL = defaultBaseURL
  }
  if err := config.Validate(); err != nil {
    return nil, fmt.Errorf("config.Validate: %w", err)
  }

  return &Client{config: config, deps: deps}, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
  return c.deps.Client.R().
    SetContext(ctx).
    SetHeader("Authorization", c.config.Token)
}

func unmarshalResponse(resp *resty.Response, out any) error {
  if resp.StatusCode() >= http.StatusBadRequest {
    return fmt.Errorf("max response: status %d: %s", resp.StatusCode(), resp.Body())
  }
  if out != nil {
    if err := json.Unmarshal(resp.Body(), out); err != nil {
      return fmt.Errorf("response unmarshal json: %w", err)
    }
  }
  return nil
}

func (c *Client) GetMe(ctx context.Context) (*BotInfo, error) {
  resp, err := c.request(ctx).Get(c.config.BaseURL + "/me")
  if err != nil {
    return nil, fmt.Errorf("resty.Request.Get: %w", err)
  }

  info := new(BotInfo)
  if err = unmarshalResponse(resp, info); err != nil {
    return nil, fmt.Errorf("unmarshalResponse: %w", err)
  }
  return info, nil
}

type GetUpdatesParams struct {
  Marker  *int64
  Timeout time.Duration
}

// GetUpdates long-polls the platform for fresh updates. The marker
// from the previous page acknowledges everything before it.
func (c *Client) GetUpdates(ctx context.Context, params GetUpdatesParams) (*UpdatesPage, error) {
  timeout := params.Timeout
  if timeout == 0 {
    timeout = 30 * time.Second
  }

  query := map[string]string{
    "timeout": strconv.Itoa(int(timeout.Seconds())),
    "limit":   "100",
  }
  if params.Marker != nil {
    query["marker"] = strconv.FormatInt(*params.Marker, 10)
  }

  resp, err := c.request(ctx).
    SetQueryParams(query).
    Get(c.config.BaseURL + "/updates")
  if err != nil {
    return nil, fmt.Errorf("resty.Request.Get: %w", err)
  }

  page := new(UpdatesPage)
  if err = unmarshalResponse(resp, page); err != nil {
    return nil, fmt.Errorf("unmarshalResponse: %w", err)
  }
  return page, nil
}

func recipientQuery(chatId, userId int64) map[string]string {
  query := map[string]string{}
  if chatId != 0 {
    query["chat_id"] = strconv.FormatInt(chatId, 10)
  }
  if userId != 0 {
    query["user_id"] = strconv.FormatInt(userId, 10)
  }
  return query
}

type SendMessageParams struct {
  ChatId  int64
  UserId  int64
  Text    string
  Buttons [][]Button
}

func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) error {
  body := messageBody{
    Text:   params.Text,
    Notify: true,
  }
  if len(params.Buttons) != 0 {
    body.Attachments = []attachment{{
      Type:    "inline_keyboard",
      Payload: attachmentPayload{Buttons: params.Buttons},
    }}
  }

  resp, err := c.request(ctx).
    SetQueryParams(recipientQuery(params.ChatId, params.UserId)).
    SetBody(body).
    Post(c.config.BaseURL + "/messages")
  if err != nil {
    return fmt.Errorf("resty.Request.Post: %w", err)
  }

  if err = unmarshalResponse(resp, nil); err != nil {
    return fmt.Errorf("unmarshalResponse: %w", err)
  }
  return nil
}

func (c *Client) uploadImage(ctx context.Context, image []byte, filename string) (string, error) {
  resp, err := c.request(ctx).
    SetQueryParam("type", "image").
    Post(c.config.BaseURL + "/uploads")
  if err != nil {
    return "", fmt.Errorf("resty.Request.Post: %w", err)
  }

  var endpoint uploadEndpoint
  if err = unmarshalResponse(resp, &endpoint); err != nil {
    return "", fmt.Errorf("unmarshalResponse: %w", err)
  }

  resp, err = c.deps.Client.R().
    SetContext(ctx).
    SetFileReader("data", filename, bytes.NewReader(image)).
    Post(endpoint.URL)
  if err != nil {
    return "", fmt.Errorf("resty.Request.Post: %w", err)
  }

  var result uploadResult
  if err = unmarshalResponse(resp, &result); err != nil {
    return "", fmt.Errorf("unmarshalResponse: %w", err)
  }

  token := result.photoToken()
  if token == "" {
    return "", fmt.Errorf("image token missed in upload response")
  }
  return token, nil
}

type SendImageParams struct {
  ChatId   int64
  UserId   int64
  Image    []byte
  Filename string
  Caption  string
  Buttons  [][]Button
}

// SendImage uploads the image and sends it in one message, with an
// optional caption and keyboard.
func (c *Client) SendImage(ctx context.Context, params SendImageParams) error {
  filename := params.Filename
  if filename == "" {
    filename = "image.jpg"
  }

  token, err := c.uploadImage(ctx, params.Image, filename)
  if err != nil {
    return fmt.Errorf("c.uploadImage: %w", err)
  }

  attachments := []attachment{{
    Type:    "image",
    Payload: attachmentPayload{Token: token},
  }}
  if len(params.Buttons) != 0 {
    attachments = append(attachments, attachment{
      Type:    "inline_keyboard",
      Payload: attachmentPayload{Buttons: params.Buttons},
    })
  }

  resp, err := c.request(ctx).
    SetQueryParams(recipientQuery(params.ChatId, params.UserId)).
    SetBody(messageBody{
      Text:        params.Caption,
      Attachments: attachments,
      Notify:      true,
    }).
    Post(c.config.BaseURL + "/messages")
  if err != nil {
    return fmt.Errorf("resty.Request.Post: %w", err)
  }

  if err = unmarshalResponse(resp, nil); err != nil {
    return fmt.Errorf("unmarshalResponse: %w", err)
  }
  return nil
}

// AnswerCallback dismisses a pressed inline button. The platform
// requires the notification field even when empty.
func (c *Client) AnswerCallback(ctx context.Context, callbackId, notification string) error {
  resp, err := c.request(ctx).
    SetQueryParam("callback_id", callbackId).
    SetBody(map[string]string{"notification": notification}).
    Post(c.config.BaseURL + "/answers")
  if err != nil {
    return fmt.Errorf("resty.Request.Post: %w", err)
  }

  if err = unmarshalResponse(resp, nil); err != nil {
    return fmt.Errorf("unmarshalResponse: %w", err)
  }
  return nil
}

// SendTyping shows the typing indicator. Failures are logged only:
// the indicator is cosmetic.
func (c *Client) SendTyping(ctx context.Context, chatId int64) {
  resp, err := c.request(ctx).
    SetBody(map[string]string{"action": "typing_on"}).
    Post(fmt.Sprintf("%s/chats/%d/actions", c.config.BaseURL, chatId))

  if err != nil {
    log.Warnf("maxapi.Client.SendTyping: resty.Request.Post: %v", err)
    return
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    log.Warnf("maxapi.Client.SendTyping: status %d", resp.StatusCode())
  }
}
