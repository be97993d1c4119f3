package analytics

import (
  "context"
  "fmt"
  "time"

  set "github.com/deckarep/golang-set/v2"
  log "github.com/sirupsen/logrus"

  "github.com/orangeflowers/maxbot/internal/deps/storage/mongodb"
  "github.com/orangeflowers/maxbot/pkg/stringer"
)

const (
  messagesCollection      = "messages"
  conversationsCollection = "conversations"
  searchesCollection      = "product_searches"
  disabledCollection      = "disabled_chats"

  maxLoggedTextLen = 1000
)

// Storage is the persistence surface the tracker needs. Implemented
// by the mongodb client.
type Storage interface {
  Insert(ctx context.Context, params mongodb.InsertParams) (any, error)
  Upsert(ctx context.Context, params mongodb.UpdateParams) (any, error)
  Delete(ctx context.Context, params mongodb.DeleteParams) (int64, error)
  Scan(ctx context.Context, params mongodb.ScanParams) error
}

type MessageDocument struct {
  Id        any    `bson:"_id,omitempty"`
  ChatId    int64  `bson:"chat_id"`
  UserId    int64  `bson:"user_id"`
  Text      string `bson:"text"`
  FromBot   bool   `bson:"from_bot"`
  Timestamp int64  `bson:"timestamp"`
}

type ConversationDocument struct {
  Id            any   `bson:"_id,omitempty"`
  ChatId        int64 `bson:"chat_id"`
  UserId        int64 `bson:"user_id"`
  LastMessageAt int64 `bson:"last_message_at"`
}

type SearchDocument struct {
  Id        any      `bson:"_id,omitempty"`
  ChatId    int64    `bson:"chat_id"`
  UserId    int64    `bson:"user_id"`
  Query     string   `bson:"query"`
  Found     int      `bson:"found"`
  Shown     []string `bson:"shown"`
  Timestamp int64    `bson:"timestamp"`
}

type DisabledChatDocument struct {
  Id         any    `bson:"_id,omitempty"`
  ChatId     int64  `bson:"chat_id"`
  DisabledAt int64  `bson:"disabled_at"`
  DisabledBy string `bson:"disabled_by"`
}

// Tracker records dialogue activity and keeps the set of chats where
// the bot is muted because a manager took over.
type Tracker struct {
  config Config
  deps   Dependencies

  disabled set.Set[int64]
}

type Config struct {
  Database string
}

type Dependencies struct {
  // Storage may be nil: the tracker then works in memory only.
  Storage Storage
}

func NewTracker(config Config, deps Dependencies) *Tracker {
  return &Tracker{
    config:   config,
    deps:     deps,
    disabled: set.NewSet[int64](),
  }
}

// Init loads the persisted disabled set so mutes survive restarts.
func (t *Tracker) Init(ctx context.Context) error {
  if t.deps.Storage == nil {
    return nil
  }

  err := t.deps.Storage.Scan(ctx, mongodb.ScanParams{
    CommonParams: mongodb.CommonParams{
      Database:   t.config.Database,
      Collection: disabledCollection,
      StructType: DisabledChatDocument{},
    },
    Callback: func(_ context.Context, value any) error {
      document, ok := value.(*DisabledChatDocument)
      if !ok {
        return fmt.Errorf("unexpected document type: %T", value)
      }
      t.disabled.Add(document.ChatId)

      return nil
    },
  })
  if err != nil {
    return fmt.Errorf("storage.Scan: %w", err)
  }

  log.Infof("analytics.Tracker.Init: %d disabled chats loaded", t.disabled.Cardinality())

  return nil
}

// LogMessage records one message of the dialogue. Storage failures
// are logged and swallowed: analytics never breaks the bot.
func (t *Tracker) LogMessage(ctx context.Context, chatId, userId int64, text string, fromBot bool) {
  if t.deps.Storage == nil {
    return
  }

  now := time.Now().Unix()

  _, err := t.deps.Storage.Insert(ctx, mongodb.InsertParams{
    CommonParams: mongodb.CommonParams{
      Database:   t.config.Database,
      Collection: messagesCollection,
    },
    Document: MessageDocument{
      ChatId: chatId,
      UserId: userId,
      // Long pastes are capped, the log is for reading, not archival.
      Text:      stringer.Truncate(text, maxLoggedTextLen),
      FromBot:   fromBot,
      Timestamp: now,
    },
  })
  if err != nil {
    log.Errorf("analytics.Tracker.LogMessage: storage.Insert: %v", err)
  }

  _, err = t.deps.Storage.Upsert(ctx, mongodb.UpdateParams{
    GetParams: mongodb.GetParams{
      CommonParams: mongodb.CommonParams{
        Database:   t.config.Database,
        Collection: conversationsCollection,
        StructType: ConversationDocument{},
      },
      Filters: map[string]any{"chat_id": chatId},
    },
    Document: ConversationDocument{
      ChatId:        chatId,
      UserId:        userId,
      LastMessageAt: now,
    },
  })
  if err != nil {
    log.Errorf("analytics.Tracker.LogMessage: storage.Upsert: %v", err)
  }
}

// LogSearch records a catalog search and what it returned.
func (t *Tracker) LogSearch(ctx context.Context, chatId, userId int64, query string, shown []string) {
  if t.deps.Storage == nil {
    return
  }

  _, err := t.deps.Storage.Insert(ctx, mongodb.InsertParams{
    CommonParams: mongodb.CommonParams{
      Database:   t.config.Database,
      Collection: searchesCollection,
    },
    Document: SearchDocument{
      ChatId:    chatId,
      UserId:    userId,
      Query:     query,
      Found:     len(shown),
      Shown:     shown,
      Timestamp: time.Now().Unix(),
    },
  })
  if err != nil {
    log.Errorf("analytics.Tracker.LogSearch: storage.Insert: %v", err)
  }
}

// DisableBot mutes the bot in a chat after a manager takes over.
func (t *Tracker) DisableBot(ctx context.Context, chatId int64, disabledBy string) {
  t.disabled.Add(chatId)

  if t.deps.Storage == nil {
    return
  }

  _, err := t.deps.Storage.Upsert(ctx, mongodb.UpdateParams{
    GetParams: mongodb.GetParams{
      CommonParams: mongodb.CommonParams{
        Database:   t.config.Database,
        Collection: disabledCollection,
        StructType: DisabledChatDocument{},
      },
      Filters: map[string]any{"chat_id": chatId},
    },
    Document: DisabledChatDocument{
      ChatId:     chatId,
      DisabledAt: time.Now().Unix(),
      DisabledBy: disabledBy,
    },
  })
  if err != nil {
    log.Errorf("analytics.Tracker.DisableBot: storage.Upsert: %v", err)
  }
}

// EnableBot unmutes the bot in a chat.
func (t *Tracker) EnableBot(ctx context.Context, chatId int64) {
  t.disabled.Remove(chatId)

  if t.deps.Storage == nil {
    return
  }

  _, err := t.deps.Storage.Delete(ctx, mongodb.DeleteParams{
    CommonParams: mongodb.CommonParams{
      Database:   t.config.Database,
      Collection: disabledCollection,
    },
    Filters: map[string]any{"chat_id": chatId},
  })
  if err != nil {
    log.Errorf("analytics.Tracker.EnableBot: storage.Delete: %v", err)
  }
}

func (t *Tracker) IsBotDisabled(chatId int64) bool {
  return t.disabled.ContainsOne(chatId)
}

// ActiveChatIds lists every chat that ever talked to the bot, for
// broadcasts. The excluded id keeps the admin out of their own blast.
func (t *Tracker) ActiveChatIds(ctx context.Context, exclude int64) ([]int64, error) {
  if t.deps.Storage == nil {
    return nil, nil
  }

  var chatIds []int64

  err := t.deps.Storage.Scan(ctx, mongodb.ScanParams{
    CommonParams: mongodb.CommonParams{
      Database:   t.config.Database,
      Collection: conversationsCollection,
      StructType: ConversationDocument{},
    },
    Callback: func(_ context.Context, value any) error {
      document, ok := value.(*ConversationDocument)
      if !ok {
        return fmt.Errorf("unexpected document type: %T", value)
      }
      if document.ChatId != exclude {
        chatIds = append(chatIds, document.ChatId)
      }

      return nil
    },
  })
  if err != nil {
    return nil, fmt.Errorf("storage.Scan: %w", err)
  }

  return chatIds, nil
}

type Stats struct {
  Conversations int
  Messages      int
  Searches      int
  Disabled      int
}

func (s Stats) String() string {
  return fmt.Sprintf(`📊 Статистика бота

💬 Диалогов: %d
✉️ Сообщений: %d
🔍 Поисков: %d
🔕 Отключённых чатов: %d`,
    s.Conversations, s.Messages, s.Searches, s.Disabled)
}

// CollectStats counts the stored documents. Collections are small for
// a single-shop bot, a full scan is fine here.
func (t *Tracker) CollectStats(ctx context.Context) (Stats, error) {
  stats := Stats{Disabled: t.disabled.Cardinality()}

  if t.deps.Storage == nil {
    return stats, nil
  }

  count := func(collection string, structType any, counter *int) error {
    return t.deps.Storage.Scan(ctx, mongodb.ScanParams{
      CommonParams: mongodb.CommonParams{
        Database:   t.config.Database,
        Collection: collection,
        StructType: structType,
      },
      Callback: func(_ context.Context, _ any) error {
        *counter++
        return nil
      },
    })
  }

  if err := count(conversationsCollection, ConversationDocument{}, &stats.Conversations); err != nil {
    return stats, fmt.Errorf("storage.Scan: %w", err)
  }
  if err := count(messagesCollection, MessageDocument{}, &stats.Messages); err != nil {
    return stats, fmt.Errorf("storage.Scan: %w", err)
  }
  if err := count(searchesCollection, SearchDocument{}, &stats.Searches); err != nil {
    return stats, fmt.Errorf("storage.Scan: %w", err)
  }

  return stats, nil
}
