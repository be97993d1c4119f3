package token

import (
  "crypto/hmac"
  "crypto/sha256"
  "encoding/base64"
  "encoding/json"
  "errors"
  "strconv"
  "strings"
  "time"

  "github.com/orangeflowers/maxbot/internal/models"
)

// ErrInvalid covers every verification failure: bad shape, forged
// signature, broken payload, expired timestamp. Callers must not be
// able to tell a forgery apart from an expiry.
var ErrInvalid = errors.New("invalid token")

const (
  tokenTTL = 24 * time.Hour

  chatSigLen = 16
  dealSigLen = 12

  dealPrefix = "a"
)

type chatPayload struct {
  ChatId  int64  `json:"c"`
  UserId  int64  `json:"u"`
  Product string `json:"p,omitempty"`
  Millis  int64  `json:"t"`

  // Legacy fields of tokens issued by earlier releases.
  Type   string `json:"type,omitempty"`
  DealId int64  `json:"l,omitempty"`
}

type Codec struct {
  secret []byte
  now    func() time.Time
}

func NewCodec(secret string) *Codec {
  return &Codec{
    secret: []byte(secret),
    now:    time.Now,
  }
}

func (c *Codec) sign(payload string, length int) string {
  mac := hmac.New(sha256.New, c.secret)
  mac.Write([]byte(payload))

  sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
  return sig[:length]
}

// GenerateChat issues a form link token bound to a messenger chat.
func (c *Codec) GenerateChat(chatId, userId int64, product string) string {
  payload, _ := json.Marshal(chatPayload{
    ChatId:  chatId,
    UserId:  userId,
    Product: product,
    Millis:  c.now().UnixMilli(),
  })

  encoded := base64.RawURLEncoding.EncodeToString(payload)
  return encoded + "." + c.sign(encoded, chatSigLen)
}

// GenerateDeal issues a compact token bound to a CRM deal.
func (c *Codec) GenerateDeal(dealId int64) string {
  payload := dealPrefix + "." +
    strconv.FormatInt(dealId, 10) + "." +
    strconv.FormatInt(c.now().UnixMilli(), 36)

  return payload + "." + c.sign(payload, dealSigLen)
}

func (c *Codec) expired(millis int64) bool {
  return c.now().UnixMilli()-millis > tokenTTL.Milliseconds()
}

// Verify checks a token of either format and returns its payload.
// The format is picked from the token shape: four parts with the
// deal prefix mean a compact deal token, two parts mean a chat token.
func (c *Codec) Verify(token string) (*models.TokenData, error) {
  parts := strings.Split(token, ".")

  if len(parts) == 4 && parts[0] == dealPrefix {
    return c.verifyDeal(parts)
  }
  if len(parts) == 2 {
    return c.verifyChat(parts[0], parts[1])
  }
  return nil, ErrInvalid
}

func (c *Codec) verifyDeal(parts []string) (*models.TokenData, error) {
  payload := parts[0] + "." + parts[1] + "." + parts[2]

  if !hmac.Equal([]byte(parts[3]), []byte(c.sign(payload, dealSigLen))) {
    return nil, ErrInvalid
  }

  dealId, err := strconv.ParseInt(parts[1], 10, 64)
  if err != nil {
    return nil, ErrInvalid
  }
  millis, err := strconv.ParseInt(parts[2], 36, 64)
  if err != nil {
    return nil, ErrInvalid
  }
  if c.expired(millis) {
    return nil, ErrInvalid
  }

  return &models.TokenData{
    Kind:     models.TokenKindDeal,
    DealId:   dealId,
    IssuedAt: millis,
  }, nil
}

func (c *Codec) verifyChat(encoded, sig string) (*models.TokenData, error) {
  if !hmac.Equal([]byte(sig), []byte(c.sign(encoded, chatSigLen))) {
    return nil, ErrInvalid
  }

  decoded, err := base64.RawURLEncoding.DecodeString(encoded)
  if err != nil {
    return nil, ErrInvalid
  }

  var payload chatPayload
  if err = json.Unmarshal(decoded, &payload); err != nil {
    return nil, ErrInvalid
  }
  if c.expired(payload.Millis) {
    return nil, ErrInvalid
  }

  // Earlier releases issued JSON deal tokens with an explicit type.
  if payload.Type == "amo" {
    return &models.TokenData{
      Kind:     models.TokenKindDeal,
      DealId:   payload.DealId,
      IssuedAt: payload.Millis,
    }, nil
  }

  return &models.TokenData{
    Kind:     models.TokenKindChat,
    ChatId:   payload.ChatId,
    UserId:   payload.UserId,
    Product:  payload.Product,
    IssuedAt: payload.Millis,
  }, nil
}
