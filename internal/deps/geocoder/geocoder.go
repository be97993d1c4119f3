package geocoder

import (
  "context"
  "encoding/json"
  "fmt"
  "net/http"
  "strconv"
  "strings"

  "github.com/go-resty/resty/v2"
  "github.com/samber/lo"
  log "github.com/sirupsen/logrus"

  "github.com/orangeflowers/maxbot/internal/order"
  "github.com/orangeflowers/maxbot/pkg/stringer"
)

const defaultBaseURL = "https://geocode-maps.yandex.ru/1.x/"

// Precisions that pin the address down to a house or at least a
// street range. Anything coarser is useless for branch routing.
var validPrecisions = []string{"exact", "number", "near", "range"}

// Client geocodes delivery addresses and maps them to branch zones.
type Client struct {
  config Config
  deps   Dependencies
}

type Config struct {
  ApiKey  string
  BaseURL string
}

type Dependencies struct {
  Client *resty.Client
}

func NewClient(config Config, deps Dependencies) *Client {
  if config.BaseURL == "" {
    config.BaseURL = defaultBaseURL
  }
  return &Client{config: config, deps: deps}
}

type geocodeResponse struct {
  Response struct {
    GeoObjectCollection struct {
      FeatureMember []struct {
        GeoObject struct {
          MetaDataProperty struct {
            GeocoderMetaData struct {
              Precision string `json:"precision"`
            } `json:"GeocoderMetaData"`
          } `json:"metaDataProperty"`
          Point struct {
            Pos string `json:"pos"`
          } `json:"Point"`
        } `json:"GeoObject"`
      } `json:"featureMember"`
    } `json:"GeoObjectCollection"`
  } `json:"response"`
}

// Geocode resolves an address to coordinates. Addresses the geocoder
// cannot pin down to house precision come back as not found.
func (c *Client) Geocode(ctx context.Context, address string) (*Point, error) {
  if c.config.ApiKey == "" {
    return nil, fmt.Errorf("geocoder api key is not configured")
  }

  resp, err := c.deps.Client.R().
    SetContext(ctx).
    SetQueryParams(map[string]string{
      "apikey":  c.config.ApiKey,
      "geocode": address,
      "format":  "json",
      "lang":    "ru_RU",
      "results": "1",
    }).
    Get(c.config.BaseURL)
  if err != nil {
    return nil, fmt.Errorf("resty.Request.Get: %w", err)
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    return nil, fmt.Errorf("geocoder response: status %d", resp.StatusCode())
  }

  var parsed geocodeResponse
  if err = json.Unmarshal(resp.Body(), &parsed); err != nil {
    return nil, fmt.Errorf("response unmarshal json: %w", err)
  }

  members := parsed.Response.GeoObjectCollection.FeatureMember
  if len(members) == 0 {
    return nil, nil
  }

  object := members[0].GeoObject

  precision := object.MetaDataProperty.GeocoderMetaData.Precision
  if !lo.Contains(validPrecisions, precision) {
    log.Infof("geocoder.Client.Geocode: precision %s too coarse for address: %s", precision, address)
    return nil, nil
  }

  // Position comes as "lng lat".
  parts := strings.Fields(object.Point.Pos)
  if len(parts) != 2 {
    return nil, fmt.Errorf("unexpected point format: %s", object.Point.Pos)
  }

  lng, errLng := strconv.ParseFloat(parts[0], 64)
  lat, errLat := strconv.ParseFloat(parts[1], 64)
  if errLng != nil || errLat != nil {
    return nil, fmt.Errorf("unexpected point format: %s", object.Point.Pos)
  }

  return &Point{Lat: lat, Lng: lng}, nil
}

// DetectBranch finds the branch enum id serving the address, zero
// when the address is unknown or outside every delivery zone.
func (c *Client) DetectBranch(ctx context.Context, address string) (int64, error) {
  if address == "" || address == order.AskRecipientAddressText {
    return 0, nil
  }

  point, err := c.Geocode(ctx, address)
  if err != nil {
    return 0, fmt.Errorf("c.Geocode: %w", err)
  }
  if point == nil {
    return 0, nil
  }

  zoneName, branchEnumId, found := DetectZone(*point)
  if !found {
    log.Infof("geocoder.Client.DetectBranch: address outside delivery zones: %s", address)
    return 0, nil
  }

  log.Infof("geocoder.Client.DetectBranch: address %s is in zone %s, branch %d",
    address, stringer.ToTitle(zoneName), branchEnumId)

  return branchEnumId, nil
}
