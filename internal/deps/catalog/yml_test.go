package catalog

import (
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

const feedSample = `<?xml version="1.0" encoding="UTF-8"?>
<yml_catalog date="2025-06-01 12:00">
  <shop>
    <name>Orange</name>
    <offers>
      <offer id="101" group_id="10">
        <name>Букет «Нежность» (40 см)</name>
        <vendorCode>Букет «Нежность» - VIP (на 30% больше цветов)</vendorCode>
        <price>3500.00</price>
        <description>Нежный букет из кустовых роз.</description>
        <url>https://shop.example/bouquet-10</url>
        <picture>https://shop.example/img/10-1.jpg</picture>
        <picture>https://shop.example/img/10-2.jpg</picture>
      </offer>
      <offer id="102" group_id="10">
        <name>Букет «Нежность»</name>
        <vendorCode>Букет «Нежность» / Как на фото</vendorCode>
        <price>2500</price>
        <description>Нежный букет из кустовых роз.</description>
        <url>https://shop.example/bouquet-10</url>
        <picture>https://shop.example/img/10-1.jpg</picture>
      </offer>
      <offer id="201">
        <name>Гортензия синяя</name>
        <price>1800</price>
        <description>Монобукет из гортензий.</description>
        <url>https://shop.example/hydrangea</url>
        <picture>https://shop.example/img/201.jpg</picture>
      </offer>
      <offer id="301" group_id="30">
        <name>Без картинки</name>
        <price>900</price>
        <url>https://shop.example/no-picture</url>
      </offer>
      <offer id="401" group_id="40">
        <name>Без цены</name>
        <price>0</price>
        <picture>https://shop.example/img/401.jpg</picture>
      </offer>
    </offers>
  </shop>
</yml_catalog>`

func TestParseFeed(t *testing.T) {
  t.Parallel()

  products, err := parseFeed([]byte(feedSample))
  require.NoError(t, err)

  // Offers without pictures or price are dropped, groups collapse.
  require.Len(t, products, 2)

  // The cheaper offer represents the group.
  bouquet := products[0]
  assert.Equal(t, "10", bouquet.Id)
  assert.Equal(t, "102", bouquet.OfferId)
  assert.Equal(t, int64(2500), bouquet.Price)
  assert.Equal(t, "Букет «Нежность»", bouquet.Title)

  // Without a group the offer id doubles as the group id.
  hydrangea := products[1]
  assert.Equal(t, "201", hydrangea.Id)
  assert.Equal(t, "Гортензия синяя", hydrangea.Title)
}

func TestCleanTitle(t *testing.T) {
  t.Parallel()

  tests := []struct {
    in   string
    want string
  }{
    {"Букет / Как на фото", "Букет"},
    {"Букет - VIP (на 30% больше цветов)", "Букет"},
    {"Букет - Роскошный (на 50% цветов больше)", "Букет"},
    {"Букет (40 см)", "Букет"},
    {"Букет   из   роз", "Букет из роз"},
  }

  for _, tt := range tests {
    assert.Equal(t, tt.want, cleanTitle(tt.in), tt.in)
  }
}
