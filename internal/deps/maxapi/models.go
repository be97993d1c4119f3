package maxapi

type BotInfo struct {
  UserId int64  `json:"user_id"`
  Name   string `json:"name"`
}

type User struct {
  UserId int64  `json:"user_id"`
  Name   string `json:"name"`
}

type Recipient struct {
  ChatId int64 `json:"chat_id"`
  UserId int64 `json:"user_id"`
}

type MessageBody struct {
  Mid  string `json:"mid"`
  Text string `json:"text"`
}

type Message struct {
  Sender    User        `json:"sender"`
  Recipient Recipient   `json:"recipient"`
  Body      MessageBody `json:"body"`
  Timestamp int64       `json:"timestamp"`
}

type Callback struct {
  CallbackId string `json:"callback_id"`
  Payload    string `json:"payload"`
  User       User   `json:"user"`
}

const (
  UpdateTypeBotStarted      = "bot_started"
  UpdateTypeMessageCreated  = "message_created"
  UpdateTypeMessageCallback = "message_callback"
)

type Update struct {
  UpdateType string    `json:"update_type"`
  Timestamp  int64     `json:"timestamp"`
  ChatId     int64     `json:"chat_id"`
  User       *User     `json:"user,omitempty"`
  Message    *Message  `json:"message,omitempty"`
  Callback   *Callback `json:"callback,omitempty"`
}

type UpdatesPage struct {
  Updates []Update `json:"updates"`
  Marker  *int64   `json:"marker"`
}

const (
  ButtonTypeCallback = "callback"
  ButtonTypeLink     = "link"
)

type Button struct {
  Type    string `json:"type"`
  Text    string `json:"text"`
  Payload string `json:"payload,omitempty"`
  URL     string `json:"url,omitempty"`
}

type attachment struct {
  Type    string            `json:"type"`
  Payload attachmentPayload `json:"payload"`
}

type attachmentPayload struct {
  Token   string     `json:"token,omitempty"`
  Buttons [][]Button `json:"buttons,omitempty"`
}

type messageBody struct {
  Text        string       `json:"text,omitempty"`
  Attachments []attachment `json:"attachments,omitempty"`
  Notify      bool         `json:"notify"`
}

type uploadEndpoint struct {
  URL string `json:"url"`
}

type uploadResult struct {
  Token  string `json:"token"`
  Photos map[string]struct {
    Token string `json:"token"`
  } `json:"photos"`
}

func (r uploadResult) photoToken() string {
  if r.Token != "" {
    return r.Token
  }
  for _, photo := range r.Photos {
    if photo.Token != "" {
      return photo.Token
    }
  }
  return ""
}
