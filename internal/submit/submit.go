package submit

import (
  "context"
  "fmt"

  log "github.com/sirupsen/logrus"

  "github.com/orangeflowers/maxbot/internal/crm"
  "github.com/orangeflowers/maxbot/internal/deps/amocrm"
  "github.com/orangeflowers/maxbot/internal/deps/amojo"
  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
  "github.com/orangeflowers/maxbot/internal/models"
  "github.com/orangeflowers/maxbot/internal/order"
)

// Source marks where a submitted order came from.
type Source string

const (
  SourceBot Source = "MAX_BOT"
  SourceWeb Source = "WEB_FORM"
  SourceCRM Source = "AMO_FORM"
)

func (s Source) label() string {
  switch s {
  case SourceWeb:
    return " (веб-форма)"
  case SourceCRM:
    return " (amoCRM форма)"
  default:
    return ""
  }
}

func (s Source) noteLabel() string {
  if s == SourceWeb {
    return "ВЕБ-ФОРМЫ"
  }
  return "БОТА MAX"
}

type Messenger interface {
  SendMessage(ctx context.Context, params maxapi.SendMessageParams) error
}

type ChatBridge interface {
  SendUserMessage(ctx context.Context, params amojo.SendUserMessageParams) (string, error)
  SendBotMessage(ctx context.Context, chatId int64, text string) (string, error)
}

type BranchDetector interface {
  DetectBranch(ctx context.Context, address string) (int64, error)
}

type Deals interface {
  UpdateDealFromOrder(ctx context.Context, params crm.UpdateDealParams) (*amocrm.Lead, error)
  UpdateDealById(ctx context.Context, order *models.Order, leadId, branchEnumId int64) (*amocrm.Lead, error)
  AddOrderNote(ctx context.Context, leadId int64, text string) error
}

// Service fans a submitted order out to the messenger, the admin, the
// CRM chat and the CRM deal. Every leg is isolated: a failed delivery
// to one destination never loses the order for the others.
type Service struct {
  config Config
  deps   Dependencies
}

type Config struct {
  // AdminChatId receives a copy of every order. Zero disables it.
  AdminChatId int64

  // MenuButtons is the keyboard attached to the customer confirmation.
  MenuButtons [][]maxapi.Button
}

type Dependencies struct {
  Messenger Messenger
  Bridge    ChatBridge
  Branches  BranchDetector
  Deals     Deals
}

func NewService(config Config, deps Dependencies) *Service {
  return &Service{
    config: config,
    deps:   deps,
  }
}

type SubmitParams struct {
  Order  *models.Order
  Source Source
}

// Submit handles an order coming from the bot dialogue or the web
// form: the order carries the MAX chat and user ids.
func (s *Service) Submit(ctx context.Context, params SubmitParams) error {
  o := params.Order

  if err := s.deps.Messenger.SendMessage(ctx, maxapi.SendMessageParams{
    ChatId:  o.ChatId,
    Text:    ackText(o),
    Buttons: s.config.MenuButtons,
  }); err != nil {
    log.Errorf("submit.Service.Submit: messenger.SendMessage: %v", err)
  }

  s.notifyAdmin(ctx, managerText(o, params.Source))

  if _, err := s.deps.Bridge.SendUserMessage(ctx, amojo.SendUserMessageParams{
    ChatId:    o.ChatId,
    UserId:    o.UserId,
    Text:      chatText(o, params.Source),
    UserName:  o.YourName,
    UserPhone: o.YourPhone,
  }); err != nil {
    log.Errorf("submit.Service.Submit: bridge.SendUserMessage: %v", err)
  }

  // The ack goes to the CRM chat too so the manager sees both sides.
  if _, err := s.deps.Bridge.SendBotMessage(ctx, o.ChatId, ackText(o)); err != nil {
    log.Errorf("submit.Service.Submit: bridge.SendBotMessage: %v", err)
  }

  branchEnumId := s.detectBranch(ctx, o)

  lead, err := s.deps.Deals.UpdateDealFromOrder(ctx, crm.UpdateDealParams{
    Order:        o,
    UserId:       o.UserId,
    BranchEnumId: branchEnumId,
  })
  if err != nil {
    return fmt.Errorf("deals.UpdateDealFromOrder: %w", err)
  }

  if err = s.deps.Deals.AddOrderNote(ctx, lead.Id, noteText(o, params.Source)); err != nil {
    log.Errorf("submit.Service.Submit: deals.AddOrderNote: %v", err)
  }

  log.Infof("submit.Service.Submit: order processed: lead %d, chat %d", lead.Id, o.ChatId)

  return nil
}

// SubmitLead handles an order submitted through a form link generated
// in the CRM. There is no MAX chat to confirm into, so only the deal
// is updated and the admin notified.
func (s *Service) SubmitLead(ctx context.Context, o *models.Order, leadId int64) error {
  branchEnumId := s.detectBranch(ctx, o)

  lead, err := s.deps.Deals.UpdateDealById(ctx, o, leadId, branchEnumId)
  if err != nil {
    return fmt.Errorf("deals.UpdateDealById: %w", err)
  }

  if err = s.deps.Deals.AddOrderNote(ctx, lead.Id, noteText(o, SourceCRM)); err != nil {
    log.Errorf("submit.Service.SubmitLead: deals.AddOrderNote: %v", err)
  }

  s.notifyAdmin(ctx, fmt.Sprintf("🌸 *ЗАКАЗ ИЗ amoCRM ФОРМЫ*\n\n%s\n\n---\nСделка amoCRM: #%d",
    order.Body(o), leadId))

  log.Infof("submit.Service.SubmitLead: order processed: lead %d", leadId)

  return nil
}

func (s *Service) detectBranch(ctx context.Context, o *models.Order) int64 {
  if !o.IsDelivery() {
    return 0
  }

  branchEnumId, err := s.deps.Branches.DetectBranch(ctx, o.Address)
  if err != nil {
    log.Errorf("submit.Service.detectBranch: branches.DetectBranch: %v", err)
    return 0
  }
  if branchEnumId != 0 {
    log.Infof("submit.Service.detectBranch: %q resolved to branch %d", o.Address, branchEnumId)
  }

  return branchEnumId
}

func (s *Service) notifyAdmin(ctx context.Context, text string) {
  if s.config.AdminChatId == 0 {
    return
  }

  err := s.deps.Messenger.SendMessage(ctx, maxapi.SendMessageParams{
    ChatId: s.config.AdminChatId,
    Text:   text,
  })
  if err != nil {
    log.Errorf("submit.Service.notifyAdmin: messenger.SendMessage: %v", err)
  }
}

func ackText(o *models.Order) string {
  return fmt.Sprintf(`🎉 *Заказ принят!*

%s

Наш менеджер свяжется с вами для подтверждения.

Спасибо, что выбрали нас! 🌸`, order.Body(o))
}

func managerText(o *models.Order, source Source) string {
  return fmt.Sprintf("🌸 *НОВЫЙ ЗАКАЗ%s*\n\n%s\n\n---\nChat ID: %d\nUser ID: %d",
    source.label(), order.Body(o), o.ChatId, o.UserId)
}

func chatText(o *models.Order, source Source) string {
  return fmt.Sprintf("🌸 НОВЫЙ ЗАКАЗ%s\n\n%s", source.label(), order.Body(o))
}

func noteText(o *models.Order, source Source) string {
  return fmt.Sprintf("ЗАКАЗ ИЗ %s\n\n%s\n\n---\nMAX Chat ID: %d\nMAX User ID: %d\nИсточник: %s",
    source.noteLabel(), order.Body(o), o.ChatId, o.UserId, source)
}
