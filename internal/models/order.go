package models

type OrderType string

const (
  OrderTypeDelivery OrderType = "delivery"
  OrderTypePickup   OrderType = "pickup"
)

type OrderStep string

const (
  StepDate           OrderStep = "date"
  StepTime           OrderStep = "time"
  StepExactTime      OrderStep = "exactTime"
  StepAddress        OrderStep = "address"
  StepCardText       OrderStep = "cardText"
  StepYourName       OrderStep = "yourName"
  StepYourPhone      OrderStep = "yourPhone"
  StepRecipientName  OrderStep = "recipientName"
  StepRecipientPhone OrderStep = "recipientPhone"
  StepConfirm        OrderStep = "confirm"
)

// Order keeps a per-chat intake session from the first date prompt
// until confirmation or cancel.
type Order struct {
  ChatId int64
  UserId int64
  DealId int64

  Type OrderType
  Step OrderStep

  Date           string
  Time           string
  ExactTime      string
  Address        string
  CardText       string
  YourName       string
  YourPhone      string
  RecipientName  string
  RecipientPhone string

  // AskRecipientAddress means the address will be arranged with the
  // recipient and the address step is skipped.
  AskRecipientAddress bool
  SelfRecipient       bool
}

func (o *Order) IsDelivery() bool {
  return o.Type == OrderTypeDelivery
}
