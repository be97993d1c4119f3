package analytics

import (
  "context"
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/orangeflowers/maxbot/internal/deps/storage/mongodb"
)

type fakeStorage struct {
  inserted []mongodb.InsertParams
  upserted []mongodb.UpdateParams
  deleted  []mongodb.DeleteParams
  scanDocs []any
}

func (s *fakeStorage) Insert(_ context.Context, params mongodb.InsertParams) (any, error) {
  s.inserted = append(s.inserted, params)
  return nil, nil
}

func (s *fakeStorage) Upsert(_ context.Context, params mongodb.UpdateParams) (any, error) {
  s.upserted = append(s.upserted, params)
  return nil, nil
}

func (s *fakeStorage) Delete(_ context.Context, params mongodb.DeleteParams) (int64, error) {
  s.deleted = append(s.deleted, params)
  return 1, nil
}

func (s *fakeStorage) Scan(ctx context.Context, params mongodb.ScanParams) error {
  for _, doc := range s.scanDocs {
    if err := params.Callback(ctx, doc); err != nil {
      return err
    }
  }
  return nil
}

func TestTrackerLogMessage(t *testing.T) {
  t.Parallel()

  storage := &fakeStorage{}
  tracker := NewTracker(Config{Database: "test"}, Dependencies{Storage: storage})

  tracker.LogMessage(context.Background(), 100, 200, "привет", false)

  require.Len(t, storage.inserted, 1)
  message, ok := storage.inserted[0].Document.(MessageDocument)
  require.True(t, ok)

  assert.Equal(t, int64(100), message.ChatId)
  assert.Equal(t, int64(200), message.UserId)
  assert.Equal(t, "привет", message.Text)
  assert.False(t, message.FromBot)
  assert.NotZero(t, message.Timestamp)

  require.Len(t, storage.upserted, 1)
  assert.Equal(t, conversationsCollection, storage.upserted[0].Collection)
  assert.Equal(t, map[string]any{"chat_id": int64(100)}, storage.upserted[0].Filters)
}

func TestTrackerLogSearch(t *testing.T) {
  t.Parallel()

  storage := &fakeStorage{}
  tracker := NewTracker(Config{Database: "test"}, Dependencies{Storage: storage})

  tracker.LogSearch(context.Background(), 100, 200, "розы", []string{"Букет роз", "Розы в коробке"})

  require.Len(t, storage.inserted, 1)
  search, ok := storage.inserted[0].Document.(SearchDocument)
  require.True(t, ok)

  assert.Equal(t, "розы", search.Query)
  assert.Equal(t, 2, search.Found)
  assert.Len(t, search.Shown, 2)
}

func TestTrackerDisableEnable(t *testing.T) {
  t.Parallel()

  storage := &fakeStorage{}
  tracker := NewTracker(Config{Database: "test"}, Dependencies{Storage: storage})

  assert.False(t, tracker.IsBotDisabled(100))

  tracker.DisableBot(context.Background(), 100, "manager")
  assert.True(t, tracker.IsBotDisabled(100))
  require.Len(t, storage.upserted, 1)
  assert.Equal(t, disabledCollection, storage.upserted[0].Collection)

  tracker.EnableBot(context.Background(), 100)
  assert.False(t, tracker.IsBotDisabled(100))
  require.Len(t, storage.deleted, 1)
}

func TestTrackerInitLoadsDisabled(t *testing.T) {
  t.Parallel()

  storage := &fakeStorage{
    scanDocs: []any{
      &DisabledChatDocument{ChatId: 100},
      &DisabledChatDocument{ChatId: 300},
    },
  }
  tracker := NewTracker(Config{Database: "test"}, Dependencies{Storage: storage})

  require.NoError(t, tracker.Init(context.Background()))

  assert.True(t, tracker.IsBotDisabled(100))
  assert.True(t, tracker.IsBotDisabled(300))
  assert.False(t, tracker.IsBotDisabled(200))
}

func TestTrackerWithoutStorage(t *testing.T) {
  t.Parallel()

  tracker := NewTracker(Config{}, Dependencies{})

  require.NoError(t, tracker.Init(context.Background()))

  tracker.LogMessage(context.Background(), 100, 200, "привет", true)
  tracker.DisableBot(context.Background(), 100, "manager")
  assert.True(t, tracker.IsBotDisabled(100))

  tracker.EnableBot(context.Background(), 100)
  assert.False(t, tracker.IsBotDisabled(100))
}
