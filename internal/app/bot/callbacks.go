package bot

import (
  "context"
  "fmt"
  "strings"

  "github.com/samber/lo"
  log "github.com/sirupsen/logrus"
  "github.com/spf13/cast"

  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
  "github.com/orangeflowers/maxbot/internal/models"
  "github.com/orangeflowers/maxbot/internal/order"
  "github.com/orangeflowers/maxbot/pkg/money"
)

// Button payloads are "action:value" or "action:value:param".
func parsePayload(payload string) (action, value, param string) {
  parts := strings.SplitN(payload, ":", 3)

  action = parts[0]
  if len(parts) > 1 {
    value = parts[1]
  }
  if len(parts) > 2 {
    param = parts[2]
  }
  return action, value, param
}

func fmtPayload(action, value string, param int) string {
  return fmt.Sprintf("%s:%s:%d", action, value, param)
}

var timeSlotLabels = map[string]string{
  "morning":   "Утро (9:00-12:00)",
  "afternoon": "День (12:00-17:00)",
  "evening":   "Вечер (17:00-21:00)",
}

func (s *Service) handleCallback(ctx context.Context, update maxapi.Update) error {
  callback := update.Callback
  if callback == nil {
    return nil
  }

  var chatId int64
  if update.Message != nil {
    chatId = update.Message.Recipient.ChatId
  }
  userId := callback.User.UserId

  if err := s.deps.Messenger.AnswerCallback(ctx, callback.CallbackId, ""); err != nil {
    log.Warnf("bot.Service.handleCallback: messenger.AnswerCallback: %v", err)
  }

  if chatId == 0 {
    return fmt.Errorf("callback without chat id")
  }
  if s.deps.Tracker.IsBotDisabled(chatId) {
    return nil
  }

  action, value, param := parsePayload(callback.Payload)

  switch action {
  case "menu":
    if value == "catalog" {
      return s.showCategories(ctx, chatId)
    }
    return s.showMainMenu(ctx, chatId, userId)

  case "category":
    return s.showCategoryPage(ctx, chatId, userId, value, 0)

  case "more":
    return s.showCategoryPage(ctx, chatId, userId, value, cast.ToInt(param))

  case "order":
    return s.startOrder(ctx, chatId, userId)

  case "order_time":
    return s.handleOrderTime(ctx, chatId, value)

  case "order_skip":
    return s.handleOrderSkip(ctx, chatId, value)

  case "order_ask_address":
    return s.handleOrderAskAddress(ctx, chatId)

  case "order_confirm":
    return s.confirmOrder(ctx, chatId, userId)

  case "order_cancel":
    return s.cancelOrder(ctx, chatId)

  case "contact_manager":
    return s.handleContactManager(ctx, chatId, userId)

  case "back":
    if value == "catalog" {
      return s.showCategories(ctx, chatId)
    }
    return s.showMainMenu(ctx, chatId, userId)

  default:
    log.Warnf("bot.Service.handleCallback: unknown action: %s", action)
    return nil
  }
}

func (s *Service) showCategories(ctx context.Context, chatId int64) error {
  return s.reply(ctx, chatId, categoriesText, categoriesButtons())
}

// showCategoryPage sends one page of product cards for a category and
// a keyboard to page further or jump into ordering.
func (s *Service) showCategoryPage(ctx context.Context, chatId, userId int64, categoryKey string, offset int) error {
  c, ok := categoryByKey(categoryKey)
  if !ok {
    log.Warnf("bot.Service.showCategoryPage: unknown category: %s", categoryKey)
    return s.showCategories(ctx, chatId)
  }

  perPage := s.config.ProductsPerPage

  products, err := s.deps.Catalog.Search(ctx, c.Query, offset+perPage+1)
  if err != nil {
    log.Errorf("bot.Service.showCategoryPage: catalog.Search: %v", err)
    return s.reply(ctx, chatId, catalogLoadFailText, categoriesButtons())
  }
  if len(products) <= offset {
    return s.reply(ctx, chatId, noProductsText, categoriesButtons())
  }

  hasMore := len(products) > offset+perPage

  end := offset + perPage
  if end > len(products) {
    end = len(products)
  }
  page := products[offset:end]

  if err = s.reply(ctx, chatId, c.Title, nil); err != nil {
    return err
  }

  sent := 0
  for _, product := range page {
    if err = s.sendProductCard(ctx, chatId, product); err != nil {
      log.Errorf("bot.Service.showCategoryPage: s.sendProductCard: %s: %v", product.Id, err)
      continue
    }
    sent++
  }

  s.deps.Tracker.LogSearch(ctx, chatId, userId, c.Query, lo.Map(page, func(p models.Product, _ int) string {
    return p.Title
  }))

  if sent == 0 {
    return s.reply(ctx, chatId, catalogLoadFailText, categoriesButtons())
  }

  afterText := noMoreProductsText
  if hasMore {
    afterText = fmt.Sprintf("Показано %d из %d", offset+sent, len(products))
  }

  orderUrl := s.config.WebBaseURL + "/order?t=" + s.deps.Tokens.GenerateChat(chatId, userId, categoryKey)

  return s.reply(ctx, chatId, afterText, afterProductsButtons(categoryKey, hasMore, offset+perPage, orderUrl))
}

func (s *Service) sendProductCard(ctx context.Context, chatId int64, product models.Product) error {
  caption := product.Title
  if product.Price > 0 {
    caption = fmt.Sprintf("%s — %s", product.Title, money.String(product.Price))
  }

  if len(product.Pictures) == 0 {
    return s.reply(ctx, chatId, caption, nil)
  }

  image, err := s.deps.Catalog.FetchImage(ctx, product.Pictures[0])
  if err != nil {
    return fmt.Errorf("catalog.FetchImage: %w", err)
  }

  err = s.deps.Messenger.SendImage(ctx, maxapi.SendImageParams{
    ChatId:   chatId,
    Image:    image,
    Filename: product.Id + ".jpg",
    Caption:  caption,
  })
  if err != nil {
    return fmt.Errorf("messenger.SendImage: %w", err)
  }
  return nil
}

func (s *Service) handleOrderTime(ctx context.Context, chatId int64, value string) error {
  if !s.form.Active(chatId) {
    return nil
  }

  if value == "exact" {
    s.form.SetStep(chatId, models.StepExactTime)
    return s.askStep(ctx, chatId)
  }

  label, ok := timeSlotLabels[value]
  if !ok {
    label = value
  }

  s.form.SaveValue(chatId, models.StepTime, label)
  s.form.Next(chatId)

  return s.askStep(ctx, chatId)
}

func (s *Service) handleOrderSkip(ctx context.Context, chatId int64, field string) error {
  if !s.form.Active(chatId) {
    return nil
  }

  if field == "cardText" {
    s.form.SaveValue(chatId, models.StepCardText, order.DefaultCardText)
    s.form.Next(chatId)
  }

  return s.askStep(ctx, chatId)
}

func (s *Service) handleOrderAskAddress(ctx context.Context, chatId int64) error {
  if !s.form.Active(chatId) {
    return nil
  }

  s.form.SetAskRecipientAddress(chatId)
  s.form.SaveValue(chatId, models.StepAddress, order.AskRecipientAddressText)
  s.form.Next(chatId)

  return s.askStep(ctx, chatId)
}

func (s *Service) handleContactManager(ctx context.Context, chatId, userId int64) error {
  if err := s.reply(ctx, chatId, contactManagerText, mainMenuButtons()); err != nil {
    return err
  }

  s.deps.Pool.Push(func(ctx context.Context) error {
    task, err := s.deps.CRM.CreateContactManagerTask(ctx, userId)
    if err != nil {
      return fmt.Errorf("crm.CreateContactManagerTask: %w", err)
    }
    if task != nil {
      log.Infof("bot.Service.handleContactManager: task %d created for user %d", task.Id, userId)
    }
    return nil
  })

  return nil
}
