package submit

import (
  "context"
  "errors"
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/orangeflowers/maxbot/internal/crm"
  "github.com/orangeflowers/maxbot/internal/deps/amocrm"
  "github.com/orangeflowers/maxbot/internal/deps/amojo"
  "github.com/orangeflowers/maxbot/internal/deps/maxapi"
  "github.com/orangeflowers/maxbot/internal/models"
)

type fakeMessenger struct {
  sent []maxapi.SendMessageParams
  err  error
}

func (m *fakeMessenger) SendMessage(_ context.Context, params maxapi.SendMessageParams) error {
  if m.err != nil {
    return m.err
  }
  m.sent = append(m.sent, params)
  return nil
}

type fakeBridge struct {
  relayed  []amojo.SendUserMessageParams
  botTexts []string
  err      error
}

func (b *fakeBridge) SendUserMessage(_ context.Context, params amojo.SendUserMessageParams) (string, error) {
  if b.err != nil {
    return "", b.err
  }
  b.relayed = append(b.relayed, params)
  return "msg-1", nil
}

func (b *fakeBridge) SendBotMessage(_ context.Context, chatId int64, text string) (string, error) {
  if b.err != nil {
    return "", b.err
  }
  b.botTexts = append(b.botTexts, text)
  return "bot-msg-1", nil
}

type fakeBranches struct {
  branchByAddress map[string]int64
  err             error
}

func (b *fakeBranches) DetectBranch(_ context.Context, address string) (int64, error) {
  if b.err != nil {
    return 0, b.err
  }
  return b.branchByAddress[address], nil
}

type fakeDeals struct {
  updates     []crm.UpdateDealParams
  byIdUpdates []int64
  notes       map[int64]string
  branchSeen  int64
  updateErr   error
}

func (d *fakeDeals) UpdateDealFromOrder(_ context.Context, params crm.UpdateDealParams) (*amocrm.Lead, error) {
  if d.updateErr != nil {
    return nil, d.updateErr
  }
  d.updates = append(d.updates, params)
  d.branchSeen = params.BranchEnumId
  return &amocrm.Lead{Id: 555}, nil
}

func (d *fakeDeals) UpdateDealById(_ context.Context, _ *models.Order, leadId, branchEnumId int64) (*amocrm.Lead, error) {
  if d.updateErr != nil {
    return nil, d.updateErr
  }
  d.byIdUpdates = append(d.byIdUpdates, leadId)
  d.branchSeen = branchEnumId
  return &amocrm.Lead{Id: leadId}, nil
}

func (d *fakeDeals) AddOrderNote(_ context.Context, leadId int64, text string) error {
  if d.notes == nil {
    d.notes = map[int64]string{}
  }
  d.notes[leadId] = text
  return nil
}

func testOrder() *models.Order {
  return &models.Order{
    ChatId:         100,
    UserId:         200,
    Type:           models.OrderTypeDelivery,
    Date:           "14.02.2026",
    Time:           "12:00-15:00",
    Address:        "ул. Стара Загора, 25",
    YourName:       "Анна",
    YourPhone:      "+79990001122",
    RecipientName:  "Мария",
    RecipientPhone: "+79990003344",
  }
}

func newTestService(deps Dependencies) *Service {
  return NewService(Config{AdminChatId: 777}, deps)
}

func TestSubmitFansOut(t *testing.T) {
  t.Parallel()

  messenger := &fakeMessenger{}
  bridge := &fakeBridge{}
  branches := &fakeBranches{branchByAddress: map[string]int64{"ул. Стара Загора, 25": 1783963}}
  deals := &fakeDeals{}

  service := newTestService(Dependencies{
    Messenger: messenger,
    Bridge:    bridge,
    Branches:  branches,
    Deals:     deals,
  })

  err := service.Submit(context.Background(), SubmitParams{Order: testOrder(), Source: SourceWeb})
  require.NoError(t, err)

  require.Len(t, messenger.sent, 2)
  assert.Equal(t, int64(100), messenger.sent[0].ChatId)
  assert.Contains(t, messenger.sent[0].Text, "Заказ принят")
  assert.Equal(t, int64(777), messenger.sent[1].ChatId)
  assert.Contains(t, messenger.sent[1].Text, "НОВЫЙ ЗАКАЗ (веб-форма)")
  assert.Contains(t, messenger.sent[1].Text, "Chat ID: 100")

  require.Len(t, bridge.relayed, 1)
  assert.Equal(t, "Анна", bridge.relayed[0].UserName)
  assert.Equal(t, "+79990001122", bridge.relayed[0].UserPhone)

  require.Len(t, bridge.botTexts, 1)
  assert.Contains(t, bridge.botTexts[0], "Заказ принят")

  require.Len(t, deals.updates, 1)
  assert.Equal(t, int64(1783963), deals.branchSeen)

  require.Contains(t, deals.notes, int64(555))
  assert.Contains(t, deals.notes[555], "ЗАКАЗ ИЗ ВЕБ-ФОРМЫ")
  assert.Contains(t, deals.notes[555], "Источник: WEB_FORM")
}

func TestSubmitSurvivesMessengerFailure(t *testing.T) {
  t.Parallel()

  deals := &fakeDeals{}
  service := newTestService(Dependencies{
    Messenger: &fakeMessenger{err: errors.New("api down")},
    Bridge:    &fakeBridge{err: errors.New("amojo down")},
    Branches:  &fakeBranches{err: errors.New("geocoder down")},
    Deals:     deals,
  })

  err := service.Submit(context.Background(), SubmitParams{Order: testOrder(), Source: SourceBot})
  require.NoError(t, err)

  require.Len(t, deals.updates, 1)
  assert.Zero(t, deals.branchSeen)
}

func TestSubmitFailsWhenDealUpdateFails(t *testing.T) {
  t.Parallel()

  service := newTestService(Dependencies{
    Messenger: &fakeMessenger{},
    Bridge:    &fakeBridge{},
    Branches:  &fakeBranches{},
    Deals:     &fakeDeals{updateErr: errors.New("crm down")},
  })

  err := service.Submit(context.Background(), SubmitParams{Order: testOrder(), Source: SourceBot})
  require.Error(t, err)
}

func TestSubmitSkipsBranchForPickup(t *testing.T) {
  t.Parallel()

  branches := &fakeBranches{branchByAddress: map[string]int64{"Филиал на Гагарина": 1783963}}
  deals := &fakeDeals{}

  service := newTestService(Dependencies{
    Messenger: &fakeMessenger{},
    Bridge:    &fakeBridge{},
    Branches:  branches,
    Deals:     deals,
  })

  o := testOrder()
  o.Type = models.OrderTypePickup
  o.Address = "Филиал на Гагарина"

  require.NoError(t, service.Submit(context.Background(), SubmitParams{Order: o, Source: SourceBot}))
  assert.Zero(t, deals.branchSeen)
}

func TestSubmitLead(t *testing.T) {
  t.Parallel()

  messenger := &fakeMessenger{}
  deals := &fakeDeals{}

  service := newTestService(Dependencies{
    Messenger: messenger,
    Bridge:    &fakeBridge{},
    Branches:  &fakeBranches{},
    Deals:     deals,
  })

  err := service.SubmitLead(context.Background(), testOrder(), 9001)
  require.NoError(t, err)

  require.Equal(t, []int64{9001}, deals.byIdUpdates)
  assert.Contains(t, deals.notes[9001], "Источник: AMO_FORM")

  require.Len(t, messenger.sent, 1)
  assert.Contains(t, messenger.sent[0].Text, "ЗАКАЗ ИЗ amoCRM ФОРМЫ")
  assert.Contains(t, messenger.sent[0].Text, "#9001")
}
