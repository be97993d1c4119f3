package token

import (
  "encoding/base64"
  "strings"
  "testing"
  "time"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/orangeflowers/maxbot/internal/models"
)

func newTestCodec(at time.Time) *Codec {
  codec := NewCodec("test-secret")
  codec.now = func() time.Time { return at }
  return codec
}

func TestChatTokenRoundTrip(t *testing.T) {
  t.Parallel()

  issued := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
  codec := newTestCodec(issued)

  value := codec.GenerateChat(100200, 300400, "Букет «Нежность»")

  data, err := codec.Verify(value)
  require.NoError(t, err)

  assert.Equal(t, models.TokenKindChat, data.Kind)
  assert.Equal(t, int64(100200), data.ChatId)
  assert.Equal(t, int64(300400), data.UserId)
  assert.Equal(t, "Букет «Нежность»", data.Product)
  assert.Equal(t, issued.UnixMilli(), data.IssuedAt)
}

func TestDealTokenRoundTrip(t *testing.T) {
  t.Parallel()

  codec := newTestCodec(time.Now())

  value := codec.GenerateDeal(31337001)
  require.Len(t, strings.Split(value, "."), 4)

  data, err := codec.Verify(value)
  require.NoError(t, err)

  assert.Equal(t, models.TokenKindDeal, data.Kind)
  assert.Equal(t, int64(31337001), data.DealId)
}

func TestTokenExpiry(t *testing.T) {
  t.Parallel()

  issued := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
  codec := newTestCodec(issued)

  chatToken := codec.GenerateChat(1, 2, "")
  dealToken := codec.GenerateDeal(3)

  // Just inside the window.
  codec.now = func() time.Time { return issued.Add(24*time.Hour - time.Second) }

  _, err := codec.Verify(chatToken)
  assert.NoError(t, err)
  _, err = codec.Verify(dealToken)
  assert.NoError(t, err)

  // Just past it.
  codec.now = func() time.Time { return issued.Add(24*time.Hour + time.Second) }

  _, err = codec.Verify(chatToken)
  assert.ErrorIs(t, err, ErrInvalid)
  _, err = codec.Verify(dealToken)
  assert.ErrorIs(t, err, ErrInvalid)
}

func TestTamperedTokensRejected(t *testing.T) {
  t.Parallel()

  codec := newTestCodec(time.Now())

  t.Run("forged signature", func(t *testing.T) {
    value := codec.GenerateChat(1, 2, "")
    parts := strings.Split(value, ".")

    _, err := codec.Verify(parts[0] + "." + strings.Repeat("A", len(parts[1])))
    assert.ErrorIs(t, err, ErrInvalid)
  })

  t.Run("swapped payload", func(t *testing.T) {
    first := strings.Split(codec.GenerateChat(1, 2, ""), ".")
    second := strings.Split(codec.GenerateChat(3, 4, ""), ".")

    _, err := codec.Verify(first[0] + "." + second[1])
    assert.ErrorIs(t, err, ErrInvalid)
  })

  t.Run("deal id replaced", func(t *testing.T) {
    parts := strings.Split(codec.GenerateDeal(555), ".")
    parts[1] = "556"

    _, err := codec.Verify(strings.Join(parts, "."))
    assert.ErrorIs(t, err, ErrInvalid)
  })

  t.Run("another secret", func(t *testing.T) {
    other := NewCodec("other-secret")

    _, err := other.Verify(codec.GenerateChat(1, 2, ""))
    assert.ErrorIs(t, err, ErrInvalid)
  })
}

func TestMalformedTokensRejected(t *testing.T) {
  t.Parallel()

  codec := newTestCodec(time.Now())

  for _, value := range []string{
    "",
    "abc",
    "a.b.c",
    "a.b.c.d.e",
    "не-base64.0000000000000000",
  } {
    _, err := codec.Verify(value)
    assert.ErrorIs(t, err, ErrInvalid, value)
  }

  // Valid signature over garbage payload bytes.
  encoded := base64.RawURLEncoding.EncodeToString([]byte("not json"))
  _, err := codec.Verify(encoded + "." + codec.sign(encoded, chatSigLen))
  assert.ErrorIs(t, err, ErrInvalid)
}

func TestLegacyDealJSONToken(t *testing.T) {
  t.Parallel()

  issued := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
  codec := newTestCodec(issued)

  encoded := base64.RawURLEncoding.EncodeToString(
    []byte(`{"type":"amo","l":987654,"t":1717232400000}`),
  )
  value := encoded + "." + codec.sign(encoded, chatSigLen)

  data, err := codec.Verify(value)
  require.NoError(t, err)

  assert.Equal(t, models.TokenKindDeal, data.Kind)
  assert.Equal(t, int64(987654), data.DealId)
}
