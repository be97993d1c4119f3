package bot

import (
  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
)

const (
  greetingText = `🌸 Здравствуйте! Это цветочная мастерская Orange.

Выберите, что вас интересует:`

  categoriesText = "💐 Выберите категорию:"

  noProductsText     = "В этой категории пока нет букетов. Загляните позже! 🌷"
  noMoreProductsText = "Это все букеты в категории. Можно оформить заказ или вернуться в каталог."

  contactManagerText = `👩‍💼 Передали ваш вопрос менеджеру!

Мы свяжемся с вами в ближайшее время. А пока можете посмотреть каталог 🌸`

  errorText = "Что-то пошло не так. Попробуйте ещё раз чуть позже 🙏"

  orderStartText = `📝 Оформим заказ за пару минут.

Отвечайте на вопросы или нажмите «Отменить», если передумаете.`

  askDateText          = "📅 На какую дату нужен букет? (например, 14.02)"
  askTimeText          = "🕐 К какому времени?"
  askExactTimeText     = "🕐 Напишите точное время (например, 14:30).\n\nДоставка к точному времени +350₽."
  askAddressText       = "📍 Куда доставить букет? Напишите адрес."
  askCardTextText      = "💌 Что написать в открытке? Или нажмите «Пропустить»."
  askYourNameText      = "👤 Как вас зовут?"
  askYourPhoneText     = "📱 Ваш номер телефона?"
  askRecipientNameText = "🎁 Как зовут получателя? Если букет для вас, напишите своё имя."
  askRecipientPhone    = "📱 Номер телефона получателя?"
  confirmOrderText     = "Всё верно?"

  invalidPhoneText = "⚠️ Введите корректный номер телефона (минимум 10 цифр)"

  orderSuccessText    = "Заказ отправлен менеджеру! 🌸"
  orderCancelledText  = "Заказ отменён. Возвращайтесь, когда будете готовы 🌷"
  botDisabledText     = "Бот отключён для этого диалога. Для включения используйте /start"
  botEnabledText      = "Бот снова включён! 🌸\n\nВыберите, что вас интересует:"
  adminOnlyText       = "Эта команда доступна только администратору."
  catalogLoadFailText = "Не удалось загрузить букеты. Попробуйте позже."
)

// Chat categories drive catalog search queries, the feed itself
// carries no category tree.
type category struct {
  Key   string
  Title string
  Query string
}

var categories = []category{
  {Key: "roses", Title: "🌹 Розы", Query: "розы"},
  {Key: "peonies", Title: "🌺 Пионы", Query: "пион"},
  {Key: "bouquets", Title: "💐 Авторские букеты", Query: "букет"},
  {Key: "wedding", Title: "👰 Свадебные", Query: "свадебный"},
}

func categoryByKey(key string) (category, bool) {
  for _, c := range categories {
    if c.Key == key {
      return c, true
    }
  }
  return category{}, false
}

func callbackButton(text, payload string) maxapi.Button {
  return maxapi.Button{Type: maxapi.ButtonTypeCallback, Text: text, Payload: payload}
}

func linkButton(text, url string) maxapi.Button {
  return maxapi.Button{Type: maxapi.ButtonTypeLink, Text: text, URL: url}
}

// MainMenuButtons is also attached to the order confirmation sent
// outside the dialogue, so other packages need it.
func MainMenuButtons() [][]maxapi.Button {
  return mainMenuButtons()
}

func mainMenuButtons() [][]maxapi.Button {
  return [][]maxapi.Button{
    {callbackButton("💐 Каталог", "menu:catalog")},
    {callbackButton("📝 Оформить заказ", "order:start")},
    {callbackButton("👩‍💼 Связаться с менеджером", "contact_manager:_")},
  }
}

func categoriesButtons() [][]maxapi.Button {
  buttons := make([][]maxapi.Button, 0, len(categories)+1)
  for _, c := range categories {
    buttons = append(buttons, []maxapi.Button{callbackButton(c.Title, "category:"+c.Key)})
  }
  buttons = append(buttons, []maxapi.Button{callbackButton("⬅️ Назад", "back:main")})

  return buttons
}

func afterProductsButtons(categoryKey string, hasMore bool, nextOffset int, orderUrl string) [][]maxapi.Button {
  var buttons [][]maxapi.Button

  if hasMore {
    buttons = append(buttons, []maxapi.Button{
      callbackButton("Показать ещё", fmtPayload("more", categoryKey, nextOffset)),
    })
  }
  buttons = append(buttons,
    []maxapi.Button{linkButton("🛒 Заказать на сайте", orderUrl)},
    []maxapi.Button{callbackButton("📝 Оформить в чате", "order:start")},
    []maxapi.Button{callbackButton("⬅️ К категориям", "back:catalog")},
  )

  return buttons
}

func orderCancelButtons() [][]maxapi.Button {
  return [][]maxapi.Button{
    {callbackButton("❌ Отменить", "order_cancel:_")},
  }
}

func orderTimeButtons() [][]maxapi.Button {
  return [][]maxapi.Button{
    {callbackButton("🌅 Утро (9:00-12:00)", "order_time:morning")},
    {callbackButton("☀️ День (12:00-17:00)", "order_time:afternoon")},
    {callbackButton("🌆 Вечер (17:00-21:00)", "order_time:evening")},
    {callbackButton("⏰ Точно ко времени (+350₽)", "order_time:exact")},
    {callbackButton("❌ Отменить", "order_cancel:_")},
  }
}

func orderAddressButtons() [][]maxapi.Button {
  return [][]maxapi.Button{
    {callbackButton("🙈 Узнать адрес у получателя", "order_ask_address:_")},
    {callbackButton("❌ Отменить", "order_cancel:_")},
  }
}

func orderSkipCardButtons() [][]maxapi.Button {
  return [][]maxapi.Button{
    {callbackButton("⏭ Пропустить", "order_skip:cardText")},
    {callbackButton("❌ Отменить", "order_cancel:_")},
  }
}

func orderConfirmButtons() [][]maxapi.Button {
  return [][]maxapi.Button{
    {callbackButton("✅ Подтвердить", "order_confirm:_")},
    {callbackButton("❌ Отменить", "order_cancel:_")},
  }
}
