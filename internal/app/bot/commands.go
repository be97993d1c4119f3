package bot

import (
  "context"
  "fmt"
  "strings"
  "time"

  log "github.com/sirupsen/logrus"
  "github.com/spf13/cast"

  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
)

const helpText = `Команды бота:

/start - Включить бота
/stop - Отключить бота для этого диалога
/help - Показать справку

Для администратора:
/stats - Показать статистику
/refresh - Обновить каталог товаров
/broadcast текст - Рассылка всем пользователям

Просто напишите, что вас интересует, и я помогу подобрать букет!`

const broadcastDelay = 100 * time.Millisecond

func (s *Service) handleCommand(ctx context.Context, chatId, userId int64, text string) error {
  command := strings.ToLower(strings.Fields(text)[0])

  switch command {
  case "/start":
    return s.handleStart(ctx, chatId, userId)
  case "/stop":
    return s.handleStop(ctx, chatId, userId)
  case "/help":
    return s.reply(ctx, chatId, helpText, nil)
  case "/stats":
    return s.handleStats(ctx, chatId)
  case "/refresh":
    return s.handleRefresh(ctx, chatId)
  case "/broadcast":
    return s.handleBroadcast(ctx, chatId, text)
  default:
    return nil
  }
}

func (s *Service) handleStart(ctx context.Context, chatId, userId int64) error {
  text := greetingText

  if s.deps.Tracker.IsBotDisabled(chatId) {
    s.deps.Tracker.EnableBot(ctx, chatId)
    text = botEnabledText

    log.Infof("bot.Service.handleStart: chat %d enabled by user %d", chatId, userId)
  }

  return s.reply(ctx, chatId, text, mainMenuButtons())
}

func (s *Service) handleStop(ctx context.Context, chatId, userId int64) error {
  s.deps.Tracker.DisableBot(ctx, chatId, cast.ToString(userId))

  log.Infof("bot.Service.handleStop: chat %d disabled by user %d", chatId, userId)

  return s.reply(ctx, chatId, botDisabledText, nil)
}

func (s *Service) isAdminChat(chatId int64) bool {
  return s.config.AdminChatId != 0 && chatId == s.config.AdminChatId
}

func (s *Service) handleStats(ctx context.Context, chatId int64) error {
  if !s.isAdminChat(chatId) {
    return s.reply(ctx, chatId, adminOnlyText, nil)
  }

  stats, err := s.deps.Tracker.CollectStats(ctx)
  if err != nil {
    return fmt.Errorf("tracker.CollectStats: %w", err)
  }

  return s.reply(ctx, chatId, stats.String(), nil)
}

func (s *Service) handleRefresh(ctx context.Context, chatId int64) error {
  if !s.isAdminChat(chatId) {
    return s.reply(ctx, chatId, adminOnlyText, nil)
  }

  if err := s.reply(ctx, chatId, "Обновляю каталог...", nil); err != nil {
    return err
  }

  products, err := s.deps.Catalog.Refresh(ctx)
  if err != nil {
    return s.reply(ctx, chatId, fmt.Sprintf("Ошибка обновления каталога: %v", err), nil)
  }

  return s.reply(ctx, chatId, fmt.Sprintf("Каталог обновлён! Загружено %d товаров.", len(products)), nil)
}

func (s *Service) handleBroadcast(ctx context.Context, chatId int64, text string) error {
  if !s.isAdminChat(chatId) {
    return s.reply(ctx, chatId, adminOnlyText, nil)
  }

  broadcast := strings.TrimSpace(strings.TrimPrefix(text, "/broadcast"))
  if broadcast == "" {
    return s.reply(ctx, chatId, "Укажите текст рассылки.\n\nПример: /broadcast Акция! Скидка 20% на все букеты!", nil)
  }

  chatIds, err := s.deps.Tracker.ActiveChatIds(ctx, chatId)
  if err != nil {
    return fmt.Errorf("tracker.ActiveChatIds: %w", err)
  }
  if len(chatIds) == 0 {
    return s.reply(ctx, chatId, "Нет пользователей для рассылки.", nil)
  }

  if err = s.reply(ctx, chatId, fmt.Sprintf("Рассылка запущена...\nПолучателей: %d", len(chatIds)), nil); err != nil {
    return err
  }

  var sent, failed int

  for _, targetChatId := range chatIds {
    err = s.deps.Messenger.SendMessage(ctx, maxapi.SendMessageParams{
      ChatId: targetChatId,
      Text:   broadcast,
    })
    if err != nil {
      failed++
      log.Errorf("bot.Service.handleBroadcast: messenger.SendMessage: chat %d: %v", targetChatId, err)
      continue
    }
    sent++

    // Keep under the messenger's rate limits.
    time.Sleep(broadcastDelay)
  }

  return s.reply(ctx, chatId, fmt.Sprintf("Рассылка завершена!\n\nОтправлено: %d\nОшибок: %d", sent, failed), nil)
}
