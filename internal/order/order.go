package order

import (
  "fmt"

  "github.com/orangeflowers/maxbot/internal/models"
  "github.com/orangeflowers/maxbot/pkg/stringer"
)

const (
  AskRecipientAddressText = "Узнать у получателя"
  DefaultCardText         = "Без подписи"

  exactTimeSurcharge = "(+350₽)"

  minPhoneDigits = 10
)

// stepsOrder is the form walk. The exact time step is entered only
// from the time step and is not part of the linear order.
var stepsOrder = []models.OrderStep{
  models.StepDate,
  models.StepTime,
  models.StepAddress,
  models.StepCardText,
  models.StepYourName,
  models.StepYourPhone,
  models.StepRecipientName,
  models.StepRecipientPhone,
  models.StepConfirm,
}

// Form drives the step-by-step order dialogue over a session store.
type Form struct {
  store Store
}

func NewForm(store Store) *Form {
  return &Form{store: store}
}

func (f *Form) Start(chatId, userId int64, orderType models.OrderType) *models.Order {
  order := &models.Order{
    ChatId: chatId,
    UserId: userId,
    Type:   orderType,
    Step:   models.StepDate,
  }
  f.store.Put(order)

  return order
}

func (f *Form) Get(chatId int64) (*models.Order, bool) {
  return f.store.Get(chatId)
}

func (f *Form) Active(chatId int64) bool {
  _, ok := f.store.Get(chatId)
  return ok
}

// SaveAnswer stores the value for the current step and advances the
// form, honoring the address skip.
func (f *Form) SaveAnswer(chatId int64, value string) *models.Order {
  order, ok := f.store.Get(chatId)
  if !ok {
    return nil
  }

  setField(order, order.Step, value)
  f.advance(order)

  return order
}

// SaveValue writes a step value without changing the current step.
func (f *Form) SaveValue(chatId int64, step models.OrderStep, value string) *models.Order {
  order, ok := f.store.Get(chatId)
  if !ok {
    return nil
  }

  setField(order, step, value)
  f.store.Put(order)

  return order
}

func (f *Form) SetStep(chatId int64, step models.OrderStep) *models.Order {
  order, ok := f.store.Get(chatId)
  if !ok {
    return nil
  }

  order.Step = step
  f.store.Put(order)

  return order
}

func (f *Form) SetAskRecipientAddress(chatId int64) *models.Order {
  order, ok := f.store.Get(chatId)
  if !ok {
    return nil
  }

  order.AskRecipientAddress = true
  f.store.Put(order)

  return order
}

// Next advances to the following step without saving anything.
func (f *Form) Next(chatId int64) *models.Order {
  order, ok := f.store.Get(chatId)
  if !ok {
    return nil
  }
  f.advance(order)

  return order
}

func (f *Form) advance(order *models.Order) {
  current := stepIndex(order.Step)
  if current < 0 || current >= len(stepsOrder)-1 {
    f.store.Put(order)
    return
  }

  order.Step = stepsOrder[current+1]

  if order.Step == models.StepAddress && order.AskRecipientAddress {
    order.Address = AskRecipientAddressText
    order.Step = stepsOrder[current+2]
  }

  f.store.Put(order)
}

// Complete removes the session from the store and returns it.
func (f *Form) Complete(chatId int64) *models.Order {
  order, ok := f.store.Get(chatId)
  if !ok {
    return nil
  }
  f.store.Delete(chatId)

  return order
}

func (f *Form) Cancel(chatId int64) {
  f.store.Delete(chatId)
}

func stepIndex(step models.OrderStep) int {
  if step == models.StepExactTime {
    // Exact time is a detour off the time step.
    return stepIndex(models.StepTime)
  }
  for index, s := range stepsOrder {
    if s == step {
      return index
    }
  }
  return -1
}

func setField(order *models.Order, step models.OrderStep, value string) {
  switch step {
  case models.StepDate:
    order.Date = value
  case models.StepTime:
    order.Time = value
  case models.StepExactTime:
    order.ExactTime = value
    order.Time = "Точно в " + value
  case models.StepAddress:
    order.Address = value
  case models.StepCardText:
    order.CardText = value
  case models.StepYourName:
    order.YourName = value
  case models.StepYourPhone:
    order.YourPhone = value
  case models.StepRecipientName:
    order.RecipientName = value
  case models.StepRecipientPhone:
    order.RecipientPhone = value
  }
}

// ValidPhone accepts any writing with at least ten digits in it.
func ValidPhone(value string) bool {
  return len(stringer.Digits(value)) >= minPhoneDigits
}

func timeText(order *models.Order) string {
  if order.ExactTime != "" {
    return fmt.Sprintf("Точно в %s %s", order.ExactTime, exactTimeSurcharge)
  }
  return order.Time
}

func orDash(value string) string {
  if value == "" {
    return "—"
  }
  return value
}

// Body renders the filled order fields as a readable block.
func Body(order *models.Order) string {
  cardText := order.CardText
  if cardText == "" {
    cardText = DefaultCardText
  }

  return fmt.Sprintf(`📅 Дата: %s
🕐 Время: %s
📍 Адрес: %s
💌 Открытка: %s

👤 Заказчик: %s
📱 Телефон: %s

🎁 Получатель: %s
📱 Телефон: %s`,
    orDash(order.Date),
    orDash(timeText(order)),
    orDash(order.Address),
    cardText,
    orDash(order.YourName),
    orDash(order.YourPhone),
    orDash(order.RecipientName),
    orDash(order.RecipientPhone),
  )
}

// Summary is the confirmation text shown to the customer.
func Summary(order *models.Order) string {
  return "📋 *Ваш заказ:*\n\n" + Body(order)
}

// ManagerText is the order text relayed to managers.
func ManagerText(order *models.Order) string {
  return fmt.Sprintf("🌸 *НОВЫЙ ЗАКАЗ*\n\n%s\n\n---\nChat ID: %d\nUser ID: %d",
    Body(order), order.ChatId, order.UserId)
}
