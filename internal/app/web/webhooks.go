package web

import (
  "bytes"
  "encoding/json"
  "fmt"
  "io"
  "net/http"

  log "github.com/sirupsen/logrus"
  "github.com/spf13/cast"

  "github.com/orangeflowers/maxbot/internal/deps/amojo"
  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
)

type webhookAck struct {
  Ok    bool   `json:"ok"`
  Error string `json:"error,omitempty"`
}

type managerWebhook struct {
  Message *managerEnvelope `json:"message"`

  // Typing events carry the conversation at the top level.
  Conversation *webhookConversation `json:"conversation"`
}

type managerEnvelope struct {
  Conversation webhookConversation `json:"conversation"`
  Sender       webhookSender       `json:"sender"`
  Message      *managerMessage     `json:"message"`
}

type webhookConversation struct {
  Id       string `json:"id"`
  ClientId string `json:"client_id"`
}

type webhookSender struct {
  Name string `json:"name"`
}

type managerMessage struct {
  Id       string           `json:"id"`
  Type     string           `json:"type"`
  Text     string           `json:"text"`
  Media    *webhookMedia    `json:"media"`
  Location *webhookLocation `json:"location"`
}

type webhookMedia struct {
  URL string `json:"url"`
}

type webhookLocation struct {
  Lat float64 `json:"lat"`
  Lon float64 `json:"lon"`
}

// handleAmoWebhook relays manager replies from the CRM chat into MAX.
// Always answers 200 so amoCRM does not retry delivery.
func (s *Server) handleAmoWebhook(w http.ResponseWriter, r *http.Request) {
  body, err := io.ReadAll(r.Body)
  if err != nil {
    writeJSON(w, http.StatusOK, webhookAck{Ok: false, Error: "read failed"})
    return
  }

  if !s.deps.Bridge.VerifySignature(body, r.Header.Get("X-Signature")) {
    log.Warnf("web.Server.handleAmoWebhook: invalid signature")
    writeJSON(w, http.StatusUnauthorized, webhookAck{Ok: false, Error: "invalid signature"})
    return
  }

  var webhook managerWebhook
  if err = json.Unmarshal(body, &webhook); err != nil {
    log.Errorf("web.Server.handleAmoWebhook: json.Unmarshal: %v", err)
    writeJSON(w, http.StatusOK, webhookAck{Ok: false, Error: "bad payload"})
    return
  }

  envelope := webhook.Message
  if envelope == nil || envelope.Message == nil {
    writeJSON(w, http.StatusOK, webhookAck{Ok: true})
    return
  }

  chatId, ok := amojo.MaxChatId(envelope.Conversation.ClientId)
  if !ok {
    log.Warnf("web.Server.handleAmoWebhook: unexpected client id: %s", envelope.Conversation.ClientId)
    writeJSON(w, http.StatusOK, webhookAck{Ok: true})
    return
  }

  if err = s.relayManagerMessage(r, chatId, envelope.Message); err != nil {
    log.Errorf("web.Server.handleAmoWebhook: s.relayManagerMessage: %v", err)
    writeJSON(w, http.StatusOK, webhookAck{Ok: false, Error: err.Error()})
    return
  }

  if envelope.Message.Id != "" {
    s.deps.Bridge.SendDeliveryStatus(r.Context(), envelope.Message.Id)
  }

  writeJSON(w, http.StatusOK, webhookAck{Ok: true})
}

func (s *Server) relayManagerMessage(r *http.Request, chatId int64, message *managerMessage) error {
  var text string

  switch message.Type {
  case "text":
    text = message.Text

  case "picture", "file":
    text = message.Text
    if text == "" {
      text = "📷 Изображение"
      if message.Type == "file" {
        text = "📎 Файл"
      }
    }
    if message.Media != nil && message.Media.URL != "" {
      text += "\n" + message.Media.URL
    }

  case "voice":
    text = "🎤 Голосовое сообщение (воспроизведение недоступно)"

  case "video":
    text = "🎬 Видео (воспроизведение недоступно)"

  case "sticker":
    text = "😊 Стикер"

  case "location":
    if message.Location == nil {
      return nil
    }
    text = fmt.Sprintf("📍 Геолокация: %s, %s",
      cast.ToString(message.Location.Lat), cast.ToString(message.Location.Lon))

  default:
    log.Warnf("web.Server.relayManagerMessage: unknown message type: %s", message.Type)
    return nil
  }

  if text == "" {
    return nil
  }

  err := s.deps.Messenger.SendMessage(r.Context(), maxapi.SendMessageParams{
    ChatId: chatId,
    Text:   text,
  })
  if err != nil {
    return fmt.Errorf("messenger.SendMessage: %w", err)
  }
  return nil
}

// handleTypingWebhook mirrors the manager's typing indicator into MAX.
func (s *Server) handleTypingWebhook(w http.ResponseWriter, r *http.Request) {
  body, err := io.ReadAll(r.Body)
  if err != nil {
    writeJSON(w, http.StatusOK, webhookAck{Ok: true})
    return
  }

  if !s.deps.Bridge.VerifySignature(body, r.Header.Get("X-Signature")) {
    writeJSON(w, http.StatusUnauthorized, webhookAck{Ok: false, Error: "invalid signature"})
    return
  }

  var webhook managerWebhook
  if err = json.Unmarshal(body, &webhook); err == nil && webhook.Conversation != nil {
    if chatId, ok := amojo.MaxChatId(webhook.Conversation.Id); ok {
      s.deps.Messenger.SendTyping(r.Context(), chatId)
    }
  }

  writeJSON(w, http.StatusOK, webhookAck{Ok: true})
}

type leadEvent struct {
  Id         int64
  StatusId   int64
  PipelineId int64
}

// parseLeadEvents reads amoCRM's lead-status webhook, which arrives
// either as JSON or as bracket-keyed form data
// (leads[status][0][id]=...).
func parseLeadEvents(r *http.Request, body []byte) []leadEvent {
  var payload struct {
    Leads map[string][]struct {
      Id         any `json:"id"`
      StatusId   any `json:"status_id"`
      PipelineId any `json:"pipeline_id"`
    } `json:"leads"`
  }

  if err := json.Unmarshal(body, &payload); err == nil && len(payload.Leads) != 0 {
    var events []leadEvent
    for _, group := range payload.Leads {
      for _, lead := range group {
        events = append(events, leadEvent{
          Id:         cast.ToInt64(lead.Id),
          StatusId:   cast.ToInt64(lead.StatusId),
          PipelineId: cast.ToInt64(lead.PipelineId),
        })
      }
    }
    return events
  }

  if err := r.ParseForm(); err != nil {
    return nil
  }

  var events []leadEvent
  for _, event := range []string{"status", "update", "add"} {
    for index := 0; ; index++ {
      key := func(field string) string {
        return fmt.Sprintf("leads[%s][%d][%s]", event, index, field)
      }

      id := r.PostForm.Get(key("id"))
      if id == "" {
        break
      }

      events = append(events, leadEvent{
        Id:         cast.ToInt64(id),
        StatusId:   cast.ToInt64(r.PostForm.Get(key("status_id"))),
        PipelineId: cast.ToInt64(r.PostForm.Get(key("pipeline_id"))),
      })
    }
  }
  return events
}

// handleLeadStatusWebhook issues a form link when a deal enters the
// target pipeline status and writes it into the deal.
func (s *Server) handleLeadStatusWebhook(w http.ResponseWriter, r *http.Request) {
  if s.config.LeadWebhookSecret != "" && r.URL.Query().Get("secret") != s.config.LeadWebhookSecret {
    writeJSON(w, http.StatusUnauthorized, webhookAck{Ok: false, Error: "unauthorized"})
    return
  }

  body, _ := io.ReadAll(r.Body)
  r.Body = io.NopCloser(bytes.NewReader(body))

  events := parseLeadEvents(r, body)
  if len(events) == 0 {
    writeJSON(w, http.StatusOK, webhookAck{Ok: true})
    return
  }

  for _, event := range events {
    if event.StatusId != s.config.LeadTargetStatusId || event.PipelineId != s.config.LeadTargetPipelineId {
      continue
    }

    formUrl := s.config.WebBaseURL + "/order?t=" + s.deps.Tokens.GenerateDeal(event.Id)

    if err := s.deps.Deals.SetLeadFormLink(r.Context(), event.Id, formUrl); err != nil {
      log.Errorf("web.Server.handleLeadStatusWebhook: deals.SetLeadFormLink: lead %d: %v", event.Id, err)
      continue
    }

    log.Infof("web.Server.handleLeadStatusWebhook: form link written to lead %d", event.Id)
  }

  writeJSON(w, http.StatusOK, webhookAck{Ok: true})
}
