package bot

import (
  "context"
  "fmt"
  "strings"
  "time"

  log "github.com/sirupsen/logrus"

  "github.com/orangeflowers/maxbot/internal/analytics"
  "github.com/orangeflowers/maxbot/internal/crm"
  "github.com/orangeflowers/maxbot/internal/deps/amocrm"
  "github.com/orangeflowers/maxbot/internal/deps/amojo"
  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
  "github.com/orangeflowers/maxbot/internal/models"
  "github.com/orangeflowers/maxbot/internal/order"
  "github.com/orangeflowers/maxbot/internal/submit"
  "github.com/orangeflowers/maxbot/pkg/worker"
)

const pollRetryDelay = 5 * time.Second

type Messenger interface {
  GetMe(ctx context.Context) (*maxapi.BotInfo, error)
  GetUpdates(ctx context.Context, params maxapi.GetUpdatesParams) (*maxapi.UpdatesPage, error)
  SendMessage(ctx context.Context, params maxapi.SendMessageParams) error
  SendImage(ctx context.Context, params maxapi.SendImageParams) error
  AnswerCallback(ctx context.Context, callbackId, notification string) error
  SendTyping(ctx context.Context, chatId int64)
}

type Catalog interface {
  Search(ctx context.Context, query string, limit int) ([]models.Product, error)
  Refresh(ctx context.Context) ([]models.Product, error)
  FetchImage(ctx context.Context, url string) ([]byte, error)
}

type Bridge interface {
  GetOrCreateChat(ctx context.Context, params amojo.GetOrCreateChatParams) (*amojo.GetOrCreateChatResult, error)
  SendUserMessage(ctx context.Context, params amojo.SendUserMessageParams) (string, error)
}

type CRM interface {
  EnsureOpenLead(ctx context.Context, userId int64, userName string) (*crm.EnsureResult, error)
  TagTrafficSource(ctx context.Context, userId int64) error
  CreateContactManagerTask(ctx context.Context, userId int64) (*amocrm.Task, error)
}

type Tracker interface {
  LogMessage(ctx context.Context, chatId, userId int64, text string, fromBot bool)
  LogSearch(ctx context.Context, chatId, userId int64, query string, shown []string)
  DisableBot(ctx context.Context, chatId int64, disabledBy string)
  EnableBot(ctx context.Context, chatId int64)
  IsBotDisabled(chatId int64) bool
  ActiveChatIds(ctx context.Context, exclude int64) ([]int64, error)
  CollectStats(ctx context.Context) (analytics.Stats, error)
}

type Submitter interface {
  Submit(ctx context.Context, params submit.SubmitParams) error
}

type TokenIssuer interface {
  GenerateChat(chatId, userId int64, product string) string
}

// Service runs the long-poll loop and drives the whole chat dialogue:
// menu, catalog browsing, the order form and slash commands.
type Service struct {
  config Config
  deps   Dependencies

  form  *order.Form
  botId int64
}

type Config struct {
  // AdminChatId gates the admin commands. Zero disables them.
  AdminChatId int64

  // WebBaseURL is where form links point, e.g. https://shop.example.
  WebBaseURL string

  ProductsPerPage int
}

type Dependencies struct {
  Messenger Messenger
  Catalog   Catalog
  Bridge    Bridge
  CRM       CRM
  Tracker   Tracker
  Submitter Submitter
  Tokens    TokenIssuer
  Pool      *worker.Pool
}

func NewService(config Config, deps Dependencies) *Service {
  if config.ProductsPerPage <= 0 {
    config.ProductsPerPage = 3
  }
  return &Service{
    config: config,
    deps:   deps,
    form:   order.NewForm(order.NewMemoryStore()),
  }
}

// Run polls for updates until the context is cancelled. Poll failures
// back off and retry, a single bad update never stops the loop.
func (s *Service) Run(ctx context.Context) error {
  info, err := s.deps.Messenger.GetMe(ctx)
  if err != nil {
    return fmt.Errorf("messenger.GetMe: %w", err)
  }
  s.botId = info.UserId

  log.Infof("bot.Service.Run: started as %s (%d)", info.Name, info.UserId)

  var marker *int64

  for {
    if ctx.Err() != nil {
      return ctx.Err()
    }

    page, err := s.deps.Messenger.GetUpdates(ctx, maxapi.GetUpdatesParams{Marker: marker})
    if err != nil {
      if ctx.Err() != nil {
        return ctx.Err()
      }
      log.Errorf("bot.Service.Run: messenger.GetUpdates: %v", err)

      select {
      case <-ctx.Done():
        return ctx.Err()
      case <-time.After(pollRetryDelay):
      }
      continue
    }

    for _, update := range page.Updates {
      s.processUpdate(ctx, update)
    }

    if page.Marker != nil {
      marker = page.Marker
    }
  }
}

func (s *Service) processUpdate(ctx context.Context, update maxapi.Update) {
  var err error

  switch update.UpdateType {
  case maxapi.UpdateTypeBotStarted:
    err = s.handleBotStarted(ctx, update)
  case maxapi.UpdateTypeMessageCreated:
    err = s.handleMessage(ctx, update)
  case maxapi.UpdateTypeMessageCallback:
    err = s.handleCallback(ctx, update)
  default:
    log.Debugf("bot.Service.processUpdate: unknown update type: %s", update.UpdateType)
  }

  if err != nil {
    log.Errorf("bot.Service.processUpdate: %s: %v", update.UpdateType, err)
  }
}

func (s *Service) handleBotStarted(ctx context.Context, update maxapi.Update) error {
  chatId := update.ChatId
  if chatId == 0 && update.Message != nil {
    chatId = update.Message.Recipient.ChatId
  }
  if chatId == 0 {
    return fmt.Errorf("bot_started without chat id")
  }
  if s.deps.Tracker.IsBotDisabled(chatId) {
    return nil
  }

  var userId int64
  var userName string
  if update.User != nil {
    userId = update.User.UserId
    userName = update.User.Name
  }

  // CRM bootstrap runs in the background so the greeting is instant.
  s.deps.Pool.Push(func(ctx context.Context) error {
    if _, err := s.deps.Bridge.GetOrCreateChat(ctx, amojo.GetOrCreateChatParams{
      ChatId:   chatId,
      UserId:   userId,
      UserName: userName,
    }); err != nil {
      return fmt.Errorf("bridge.GetOrCreateChat: %w", err)
    }
    return nil
  })
  s.deps.Pool.Push(func(ctx context.Context) error {
    if _, err := s.deps.CRM.EnsureOpenLead(ctx, userId, userName); err != nil {
      return fmt.Errorf("crm.EnsureOpenLead: %w", err)
    }
    return nil
  })

  if err := s.deps.Messenger.SendMessage(ctx, maxapi.SendMessageParams{
    ChatId:  chatId,
    Text:    greetingText,
    Buttons: mainMenuButtons(),
  }); err != nil {
    return fmt.Errorf("messenger.SendMessage: %w", err)
  }

  s.deps.Tracker.LogMessage(ctx, chatId, userId, greetingText, true)

  return nil
}

func (s *Service) handleMessage(ctx context.Context, update maxapi.Update) error {
  message := update.Message
  if message == nil {
    return nil
  }

  chatId := message.Recipient.ChatId
  userId := message.Sender.UserId
  text := strings.TrimSpace(message.Body.Text)

  if chatId == 0 || text == "" {
    return nil
  }
  if s.botId != 0 && userId == s.botId {
    return nil
  }

  if strings.HasPrefix(text, "/") {
    return s.handleCommand(ctx, chatId, userId, text)
  }

  if s.deps.Tracker.IsBotDisabled(chatId) {
    return nil
  }

  s.deps.Tracker.LogMessage(ctx, chatId, userId, text, false)

  userName := message.Sender.Name
  s.deps.Pool.Push(func(ctx context.Context) error {
    if _, err := s.deps.Bridge.SendUserMessage(ctx, amojo.SendUserMessageParams{
      ChatId:   chatId,
      UserId:   userId,
      Text:     text,
      UserName: userName,
    }); err != nil {
      return fmt.Errorf("bridge.SendUserMessage: %w", err)
    }
    return nil
  })
  s.deps.Pool.Push(func(ctx context.Context) error {
    if err := s.deps.CRM.TagTrafficSource(ctx, userId); err != nil {
      return fmt.Errorf("crm.TagTrafficSource: %w", err)
    }
    return nil
  })

  s.deps.Messenger.SendTyping(ctx, chatId)

  if s.form.Active(chatId) {
    return s.handleOrderInput(ctx, chatId, userId, text)
  }

  return s.showMainMenu(ctx, chatId, userId)
}

func (s *Service) showMainMenu(ctx context.Context, chatId, userId int64) error {
  if err := s.deps.Messenger.SendMessage(ctx, maxapi.SendMessageParams{
    ChatId:  chatId,
    Text:    greetingText,
    Buttons: mainMenuButtons(),
  }); err != nil {
    return fmt.Errorf("messenger.SendMessage: %w", err)
  }

  s.deps.Tracker.LogMessage(ctx, chatId, userId, greetingText, true)

  return nil
}

func (s *Service) reply(ctx context.Context, chatId int64, text string, buttons [][]maxapi.Button) error {
  err := s.deps.Messenger.SendMessage(ctx, maxapi.SendMessageParams{
    ChatId:  chatId,
    Text:    text,
    Buttons: buttons,
  })
  if err != nil {
    return fmt.Errorf("messenger.SendMessage: %w", err)
  }
  return nil
}
