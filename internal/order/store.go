package order

import (
  "sync"

  "github.com/orangeflowers/maxbot/internal/models"
)

// Store keeps active intake sessions keyed by chat id.
type Store interface {
  Get(chatId int64) (*models.Order, bool)
  Put(order *models.Order)
  Delete(chatId int64)
}

type memoryStore struct {
  mu     sync.Mutex
  orders map[int64]*models.Order
}

func NewMemoryStore() Store {
  return &memoryStore{
    orders: map[int64]*models.Order{},
  }
}

func (s *memoryStore) Get(chatId int64) (*models.Order, bool) {
  s.mu.Lock()
  defer s.mu.Unlock()

  order, ok := s.orders[chatId]
  return order, ok
}

func (s *memoryStore) Put(order *models.Order) {
  s.mu.Lock()
  defer s.mu.Unlock()

  s.orders[order.ChatId] = order
}

func (s *memoryStore) Delete(chatId int64) {
  s.mu.Lock()
  defer s.mu.Unlock()

  delete(s.orders, chatId)
}
