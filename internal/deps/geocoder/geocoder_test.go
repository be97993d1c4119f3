package geocoder

import (
  "context"
  "net/http"
  "net/http/httptest"
  "sync/atomic"
  "testing"

  "github.com/go-resty/resty/v2"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/orangeflowers/maxbot/internal/order"
)

func TestDetectBranchSkipsPlaceholderAddress(t *testing.T) {
  t.Parallel()

  var requests int64

  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
    atomic.AddInt64(&requests, 1)
    w.Write([]byte(`{}`))
  }))
  defer srv.Close()

  client := NewClient(
    Config{ApiKey: "key", BaseURL: srv.URL},
    Dependencies{Client: resty.NewWithClient(srv.Client())},
  )

  for _, address := range []string{"", order.AskRecipientAddressText} {
    branch, err := client.DetectBranch(context.Background(), address)
    require.NoError(t, err)
    assert.Zero(t, branch)
  }

  // Neither address is worth a geocoder call.
  assert.Zero(t, atomic.LoadInt64(&requests))
}
