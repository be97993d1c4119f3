package amojo

import (
  "crypto/hmac"
  "crypto/sha1"
  "encoding/hex"
  "testing"

  "github.com/stretchr/testify/assert"
)

func TestSignedHeaders(t *testing.T) {
  t.Parallel()

  headers := signedHeaders("POST", "/v2/origin/custom/scope/chats", []byte(`{"a":1}`), "secret")

  assert.Equal(t, "application/json", headers["Content-Type"])
  assert.NotEmpty(t, headers["Date"])
  assert.Len(t, headers["Content-MD5"], 32)
  assert.Len(t, headers["X-Signature"], 40)
}

func TestVerifyWebhookSignature(t *testing.T) {
  t.Parallel()

  body := []byte(`{"message":{"text":"привет"}}`)

  mac := hmac.New(sha1.New, []byte("secret"))
  mac.Write(body)
  signature := hex.EncodeToString(mac.Sum(nil))

  assert.True(t, VerifyWebhookSignature(body, signature, "secret"))
  assert.False(t, VerifyWebhookSignature(body, signature, "other"))
  assert.False(t, VerifyWebhookSignature([]byte("tampered"), signature, "secret"))
  assert.False(t, VerifyWebhookSignature(body, "", "secret"))
}

func TestMaxChatId(t *testing.T) {
  t.Parallel()

  chatId, ok := MaxChatId("max_123456")
  assert.True(t, ok)
  assert.Equal(t, int64(123456), chatId)

  _, ok = MaxChatId("tg_123")
  assert.False(t, ok)

  _, ok = MaxChatId("max_abc")
  assert.False(t, ok)
}
