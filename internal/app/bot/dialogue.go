package bot

import (
  "context"
  "fmt"

  "github.com/orangeflowers/maxbot/internal/models"
  "github.com/orangeflowers/maxbot/internal/order"
  "github.com/orangeflowers/maxbot/internal/submit"
)

func (s *Service) startOrder(ctx context.Context, chatId, userId int64) error {
  s.form.Start(chatId, userId, models.OrderTypeDelivery)

  if err := s.reply(ctx, chatId, orderStartText, nil); err != nil {
    return err
  }
  return s.askStep(ctx, chatId)
}

// handleOrderInput feeds a free-text answer into the form.
func (s *Service) handleOrderInput(ctx context.Context, chatId, userId int64, text string) error {
  o, ok := s.form.Get(chatId)
  if !ok {
    return nil
  }

  switch o.Step {
  case models.StepYourPhone, models.StepRecipientPhone:
    if !order.ValidPhone(text) {
      return s.reply(ctx, chatId, invalidPhoneText, orderCancelButtons())
    }
    s.form.SaveAnswer(chatId, text)

  case models.StepTime:
    // Time is normally picked with buttons, free text works too.
    s.form.SaveAnswer(chatId, text)

  default:
    s.form.SaveAnswer(chatId, text)
  }

  return s.askStep(ctx, chatId)
}

// askStep sends the question for the form's current step.
func (s *Service) askStep(ctx context.Context, chatId int64) error {
  o, ok := s.form.Get(chatId)
  if !ok {
    return nil
  }

  switch o.Step {
  case models.StepDate:
    return s.reply(ctx, chatId, askDateText, orderCancelButtons())
  case models.StepTime:
    return s.reply(ctx, chatId, askTimeText, orderTimeButtons())
  case models.StepExactTime:
    return s.reply(ctx, chatId, askExactTimeText, orderCancelButtons())
  case models.StepAddress:
    return s.reply(ctx, chatId, askAddressText, orderAddressButtons())
  case models.StepCardText:
    return s.reply(ctx, chatId, askCardTextText, orderSkipCardButtons())
  case models.StepYourName:
    return s.reply(ctx, chatId, askYourNameText, orderCancelButtons())
  case models.StepYourPhone:
    return s.reply(ctx, chatId, askYourPhoneText, orderCancelButtons())
  case models.StepRecipientName:
    return s.reply(ctx, chatId, askRecipientNameText, orderCancelButtons())
  case models.StepRecipientPhone:
    return s.reply(ctx, chatId, askRecipientPhone, orderCancelButtons())
  case models.StepConfirm:
    text := order.Summary(o) + "\n\n" + confirmOrderText
    return s.reply(ctx, chatId, text, orderConfirmButtons())
  default:
    return s.reply(ctx, chatId, errorText, orderCancelButtons())
  }
}

func (s *Service) confirmOrder(ctx context.Context, chatId, userId int64) error {
  o := s.form.Complete(chatId)
  if o == nil {
    return nil
  }
  if o.UserId == 0 {
    o.UserId = userId
  }

  if err := s.deps.Submitter.Submit(ctx, submit.SubmitParams{
    Order:  o,
    Source: submit.SourceBot,
  }); err != nil {
    return fmt.Errorf("submitter.Submit: %w", err)
  }

  s.deps.Tracker.LogMessage(ctx, chatId, userId, orderSuccessText, true)

  return nil
}

func (s *Service) cancelOrder(ctx context.Context, chatId int64) error {
  s.form.Cancel(chatId)
  return s.reply(ctx, chatId, orderCancelledText, mainMenuButtons())
}
