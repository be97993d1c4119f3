package order

import (
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/orangeflowers/maxbot/internal/models"
)

func TestFormWalk(t *testing.T) {
  t.Parallel()

  form := NewForm(NewMemoryStore())

  order := form.Start(10, 20, models.OrderTypeDelivery)
  require.NotNil(t, order)
  assert.Equal(t, models.StepDate, order.Step)
  assert.True(t, form.Active(10))

  form.SaveAnswer(10, "12 июня")
  form.SaveAnswer(10, "С 10:00 до 12:00")
  form.SaveAnswer(10, "ул. Ленинградская, 45")
  form.SaveAnswer(10, "С юбилеем!")
  form.SaveAnswer(10, "Иван")
  form.SaveAnswer(10, "+7 927 000-11-22")
  form.SaveAnswer(10, "Ольга")
  order = form.SaveAnswer(10, "+7 927 333-44-55")

  require.NotNil(t, order)
  assert.Equal(t, models.StepConfirm, order.Step)
  assert.Equal(t, "12 июня", order.Date)
  assert.Equal(t, "Ольга", order.RecipientName)

  completed := form.Complete(10)
  require.NotNil(t, completed)
  assert.False(t, form.Active(10))
}

func TestAskRecipientAddressSkips(t *testing.T) {
  t.Parallel()

  form := NewForm(NewMemoryStore())
  form.Start(11, 21, models.OrderTypeDelivery)

  form.SaveAnswer(11, "завтра")
  form.SetAskRecipientAddress(11)
  order := form.SaveAnswer(11, "С 14:00 до 16:00")

  require.NotNil(t, order)
  assert.Equal(t, models.StepCardText, order.Step)
  assert.Equal(t, AskRecipientAddressText, order.Address)
}

func TestExactTimeDetour(t *testing.T) {
  t.Parallel()

  form := NewForm(NewMemoryStore())
  form.Start(12, 22, models.OrderTypeDelivery)

  form.SaveAnswer(12, "15 июня")
  form.SetStep(12, models.StepExactTime)
  order := form.SaveAnswer(12, "13:30")

  require.NotNil(t, order)
  assert.Equal(t, models.StepAddress, order.Step)
  assert.Equal(t, "13:30", order.ExactTime)
  assert.Equal(t, "Точно в 13:30", order.Time)

  summary := Summary(order)
  assert.Contains(t, summary, "Точно в 13:30 (+350₽)")
}

func TestSummaryDefaults(t *testing.T) {
  t.Parallel()

  form := NewForm(NewMemoryStore())
  form.Start(13, 23, models.OrderTypeDelivery)

  summary := Summary(mustGet(t, form, 13))
  assert.Contains(t, summary, "Дата: —")
  assert.Contains(t, summary, "Открытка: Без подписи")
}

func TestManagerTextCarriesIds(t *testing.T) {
  t.Parallel()

  form := NewForm(NewMemoryStore())
  form.Start(14, 24, models.OrderTypeDelivery)
  form.SaveAnswer(14, "1 июля")

  text := ManagerText(mustGet(t, form, 14))
  assert.Contains(t, text, "НОВЫЙ ЗАКАЗ")
  assert.Contains(t, text, "Chat ID: 14")
  assert.Contains(t, text, "User ID: 24")
}

func TestCancelDropsSession(t *testing.T) {
  t.Parallel()

  form := NewForm(NewMemoryStore())
  form.Start(15, 25, models.OrderTypePickup)

  form.Cancel(15)
  assert.False(t, form.Active(15))
  assert.Nil(t, form.SaveAnswer(15, "ответ без сессии"))
}

func TestValidPhone(t *testing.T) {
  t.Parallel()

  assert.True(t, ValidPhone("+7 (927) 000-11-22"))
  assert.True(t, ValidPhone("89270001122"))
  assert.False(t, ValidPhone("927 000"))
  assert.False(t, ValidPhone("позвоните мне"))
}

func mustGet(t *testing.T, form *Form, chatId int64) *models.Order {
  t.Helper()

  order, ok := form.Get(chatId)
  require.True(t, ok)
  return order
}
