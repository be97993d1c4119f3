package catalog

import (
  "encoding/xml"
  "fmt"
  "regexp"
  "strings"

  "github.com/spf13/cast"

  "github.com/orangeflowers/maxbot/internal/models"
)

type ymlCatalog struct {
  XMLName xml.Name `xml:"yml_catalog"`
  Shop    struct {
    Offers struct {
      Offers []ymlOffer `xml:"offer"`
    } `xml:"offers"`
  } `xml:"shop"`
}

type ymlOffer struct {
  Id          string   `xml:"id,attr"`
  GroupId     string   `xml:"group_id,attr"`
  Name        string   `xml:"name"`
  VendorCode  string   `xml:"vendorCode"`
  Price       string   `xml:"price"`
  Description string   `xml:"description"`
  URL         string   `xml:"url"`
  Pictures    []string `xml:"picture"`
}

var (
  asPhotoRegex  = regexp.MustCompile(`(?i)\s*[/\-]\s*Как на фото\s*`)
  vipRegex      = regexp.MustCompile(`(?i)\s*-?\s*VIP\s*\(на \d+% (больше )?цветов( больше)?\)\s*`)
  luxuryRegex   = regexp.MustCompile(`(?i)\s*-?\s*Роскошный\s*\(на \d+% (больше )?цветов( больше)?\)\s*`)
  sizeRegex     = regexp.MustCompile(`(?i)\s*\(\d+\s*см\)\s*`)
  spacesRegex   = regexp.MustCompile(`\s+`)
)

// cleanTitle strips variant suffixes the shop appends to offer names.
func cleanTitle(title string) string {
  title = asPhotoRegex.ReplaceAllString(title, "")
  title = vipRegex.ReplaceAllString(title, "")
  title = luxuryRegex.ReplaceAllString(title, "")
  title = sizeRegex.ReplaceAllString(title, "")
  title = spacesRegex.ReplaceAllString(title, " ")

  return strings.TrimSpace(title)
}

const descriptionLimit = 200

// parseFeed turns a YML feed into products grouped by group_id, the
// cheapest offer representing each group. Offers without pictures or
// a price are dropped.
func parseFeed(payload []byte) ([]models.Product, error) {
  var parsed ymlCatalog
  if err := xml.Unmarshal(payload, &parsed); err != nil {
    return nil, fmt.Errorf("feed unmarshal xml: %w", err)
  }

  grouped := map[string]models.Product{}
  order := make([]string, 0, len(parsed.Shop.Offers.Offers))

  for _, offer := range parsed.Shop.Offers.Offers {
    groupId := offer.GroupId
    if groupId == "" {
      groupId = offer.Id
    }

    price := int64(cast.ToFloat64(strings.TrimSpace(offer.Price)))
    if price <= 0 || len(offer.Pictures) == 0 {
      continue
    }

    title := offer.VendorCode
    if title == "" {
      title = offer.Name
    }

    description := offer.Description
    if runes := []rune(description); len(runes) > descriptionLimit {
      description = string(runes[:descriptionLimit])
    }

    product := models.Product{
      Id:          groupId,
      OfferId:     offer.Id,
      Title:       cleanTitle(title),
      FullName:    offer.Name,
      Price:       price,
      Pictures:    offer.Pictures,
      Description: description,
      URL:         offer.URL,
    }

    existing, ok := grouped[groupId]
    if !ok {
      order = append(order, groupId)
      grouped[groupId] = product
      continue
    }
    if product.Price < existing.Price {
      grouped[groupId] = product
    }
  }

  products := make([]models.Product, 0, len(order))
  for _, groupId := range order {
    products = append(products, grouped[groupId])
  }

  return products, nil
}
