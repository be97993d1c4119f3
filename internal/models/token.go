package models

// TokenKind distinguishes the two signed link formats the web form
// accepts.
type TokenKind string

const (
  TokenKindChat TokenKind = "chat"
  TokenKindDeal TokenKind = "deal"
)

// TokenData is the verified payload of an order form link.
type TokenData struct {
  Kind TokenKind

  ChatId  int64
  UserId  int64
  Product string

  DealId int64

  IssuedAt int64
}
