package amojo

import (
  "crypto/hmac"
  "crypto/md5"
  "crypto/sha1"
  "encoding/hex"
  "net/http"
  "strings"
  "time"
)

// signedHeaders builds the request headers the chat API requires:
// the signature covers method, body checksum, content type, date and
// path joined with newlines.
func signedHeaders(method, path string, body []byte, secret string) map[string]string {
  date := time.Now().UTC().Format(http.TimeFormat)
  contentType := "application/json"

  sum := md5.Sum(body)
  contentMD5 := hex.EncodeToString(sum[:])

  signString := strings.Join([]string{
    strings.ToUpper(method),
    contentMD5,
    contentType,
    date,
    path,
  }, "\n")

  mac := hmac.New(sha1.New, []byte(secret))
  mac.Write([]byte(signString))

  return map[string]string{
    "Date":        date,
    "Content-Type": contentType,
    "Content-MD5": contentMD5,
    "X-Signature": hex.EncodeToString(mac.Sum(nil)),
  }
}

// VerifyWebhookSignature checks the X-Signature header of an inbound
// chat webhook against the raw request body.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
  if signature == "" || secret == "" {
    return false
  }

  mac := hmac.New(sha1.New, []byte(secret))
  mac.Write(body)

  expected := hex.EncodeToString(mac.Sum(nil))

  return hmac.Equal([]byte(signature), []byte(expected))
}
