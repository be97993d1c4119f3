package amocrm

import (
  "context"
  "encoding/json"
  "fmt"
  "net/http"
  "sync"
  "time"

  "github.com/go-playground/validator/v10"
  "github.com/go-resty/resty/v2"
  log "github.com/sirupsen/logrus"
)

// Client wraps the amoCRM REST API v4 with OAuth token refresh.
type Client struct {
  config Config
  deps   Dependencies

  mu     sync.Mutex
  tokens oauthTokens
  expiry time.Time
}

type Config struct {
  BaseURL      string `validate:"required,url"`
  ClientId     string `validate:"required"`
  ClientSecret string `validate:"required"`
  RedirectURI  string `validate:"required,url"`
  AccessToken  string `validate:"required"`
  RefreshToken string `validate:"required"`
}

func (c Config) Validate() error {
  if err := validator.New().Struct(c); err != nil {
    return fmt.Errorf("validator.New.Struct: %w", err)
  }
  return nil
}

type Dependencies struct {
  Client *resty.Client
}

func NewClient(config Config, deps Dependencies) (*Client, error) {
  if err := config.Validate(); err != nil {
    return nil, fmt.Errorf("config.Validate: %w", err)
  }

  return &Client{
    config: config,
    deps:   deps,
    tokens: oauthTokens{
      AccessToken:  config.AccessToken,
      RefreshToken: config.RefreshToken,
    },
  }, nil
}

func (c *Client) accessToken() string {
  c.mu.Lock()
  defer c.mu.Unlock()

  return c.tokens.AccessToken
}

func (c *Client) refreshTokens(ctx context.Context) error {
  c.mu.Lock()
  defer c.mu.Unlock()

  resp, err := c.deps.Client.R().
    SetContext(ctx).
    SetBody(map[string]string{
      "client_id":     c.config.ClientId,
      "client_secret": c.config.ClientSecret,
      "grant_type":    "refresh_token",
      "refresh_token": c.tokens.RefreshToken,
      "redirect_uri":  c.config.RedirectURI,
    }).
    Post(c.config.BaseURL + "/oauth2/access_token")

  if err != nil {
    return fmt.Errorf("resty.Client.Post: %w", err)
  }
  if resp.StatusCode() != http.StatusOK {
    return fmt.Errorf("oauth refresh failed: status %d: %s", resp.StatusCode(), resp.Body())
  }

  var tokens oauthTokens
  if err = json.Unmarshal(resp.Body(), &tokens); err != nil {
    return fmt.Errorf("tokens unmarshal json: %w", err)
  }

  c.tokens = tokens
  // Keep a minute of slack before the reported expiry.
  c.expiry = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - time.Minute)

  log.Info("amocrm.Client: oauth tokens refreshed")

  return nil
}

type callParams struct {
  Method string
  Path   string
  Query  map[string]string
  Body   any
}

// call performs an authorized request, refreshing tokens once on 401.
// A 204 response yields a nil body without error.
func (c *Client) call(ctx context.Context, params callParams, out any) error {
  do := func() (*resty.Response, error) {
    req := c.deps.Client.R().
      SetContext(ctx).
      SetAuthToken(c.accessToken())

    if params.Query != nil {
      req.SetQueryParams(params.Query)
    }
    if params.Body != nil {
      req.SetBody(params.Body)
    }

    return req.Execute(params.Method, c.config.BaseURL+params.Path)
  }

  resp, err := do()
  if err != nil {
    return fmt.Errorf("resty.Request.Execute: %w", err)
  }

  if resp.StatusCode() == http.StatusUnauthorized {
    if err = c.refreshTokens(ctx); err != nil {
      return fmt.Errorf("c.refreshTokens: %w", err)
    }
    if resp, err = do(); err != nil {
      return fmt.Errorf("resty.Request.Execute: %w", err)
    }
  }

  if resp.StatusCode() == http.StatusNoContent {
    return nil
  }
  if resp.StatusCode() >= http.StatusBadRequest {
    return fmt.Errorf("amocrm response: status %d: %s", resp.StatusCode(), resp.Body())
  }

  if out != nil {
    if err = json.Unmarshal(resp.Body(), out); err != nil {
      return fmt.Errorf("response unmarshal json: %w", err)
    }
  }
  return nil
}

type FindContactsParams struct {
  Query      string
  WithFields bool
  Limit      int
}

func (c *Client) FindContacts(ctx context.Context, params FindContactsParams) ([]Contact, error) {
  query := map[string]string{
    "query": params.Query,
  }
  if params.WithFields {
    query["with"] = "custom_fields_values"
  }
  if params.Limit > 0 {
    query["limit"] = fmt.Sprint(params.Limit)
  }

  var embedded contactsEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodGet,
    Path:   "/api/v4/contacts",
    Query:  query,
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }

  return embedded.Embedded.Contacts, nil
}

type CreateContactParams struct {
  Name  string
  Phone string
  Email string
}

func (c *Client) CreateContact(ctx context.Context, params CreateContactParams) (*Contact, error) {
  fields := []CustomFieldValue{{
    FieldCode: "PHONE",
    Values:    []FieldValue{{Value: params.Phone, EnumCode: "WORK"}},
  }}

  if params.Email != "" {
    fields = append(fields, CustomFieldValue{
      FieldCode: "EMAIL",
      Values:    []FieldValue{{Value: params.Email, EnumCode: "WORK"}},
    })
  }

  var embedded contactsEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodPost,
    Path:   "/api/v4/contacts",
    Body: []map[string]any{{
      "name":                 params.Name,
      "custom_fields_values": fields,
    }},
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }
  if len(embedded.Embedded.Contacts) == 0 {
    return nil, fmt.Errorf("contact missed in response")
  }

  contact := embedded.Embedded.Contacts[0]
  log.Infof("amocrm.Client.CreateContact: created contact %d: %s", contact.Id, params.Name)

  return &contact, nil
}

type UpdateContactParams struct {
  Id           int64
  Name         string
  CustomFields []CustomFieldValue
}

func (c *Client) UpdateContact(ctx context.Context, params UpdateContactParams) (*Contact, error) {
  payload := map[string]any{
    "id": params.Id,
  }
  if params.Name != "" {
    payload["name"] = params.Name
  }
  if len(params.CustomFields) != 0 {
    payload["custom_fields_values"] = params.CustomFields
  }

  var embedded contactsEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodPatch,
    Path:   "/api/v4/contacts",
    Body:   []map[string]any{payload},
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }
  if len(embedded.Embedded.Contacts) == 0 {
    return nil, fmt.Errorf("contact missed in response")
  }

  return &embedded.Embedded.Contacts[0], nil
}

func (c *Client) ContactLinks(ctx context.Context, contactId int64) ([]Link, error) {
  var embedded linksEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodGet,
    Path:   fmt.Sprintf("/api/v4/contacts/%d/links", contactId),
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }

  return embedded.Embedded.Links, nil
}

func (c *Client) GetLead(ctx context.Context, leadId int64) (*Lead, error) {
  lead := new(Lead)

  err := c.call(ctx, callParams{
    Method: resty.MethodGet,
    Path:   fmt.Sprintf("/api/v4/leads/%d", leadId),
  }, lead)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }

  return lead, nil
}

type CreateLeadParams struct {
  Name         string
  Price        int64
  ContactId    int64
  PipelineId   int64
  StatusId     int64
  CustomFields []CustomFieldValue
}

func (c *Client) CreateLead(ctx context.Context, params CreateLeadParams) (*Lead, error) {
  payload := map[string]any{
    "name":                 params.Name,
    "price":                params.Price,
    "custom_fields_values": params.CustomFields,
  }
  if params.PipelineId != 0 {
    payload["pipeline_id"] = params.PipelineId
  }
  if params.StatusId != 0 {
    payload["status_id"] = params.StatusId
  }
  if params.ContactId != 0 {
    payload["_embedded"] = map[string]any{
      "contacts": []map[string]int64{{"id": params.ContactId}},
    }
  }

  var embedded leadsEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodPost,
    Path:   "/api/v4/leads",
    Body:   []map[string]any{payload},
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }
  if len(embedded.Embedded.Leads) == 0 {
    return nil, fmt.Errorf("lead missed in response")
  }

  lead := embedded.Embedded.Leads[0]
  log.Infof("amocrm.Client.CreateLead: created lead %d", lead.Id)

  return &lead, nil
}

type UpdateLeadParams struct {
  Id           int64
  StatusId     int64
  ContactId    int64
  CustomFields []CustomFieldValue
}

func (c *Client) UpdateLead(ctx context.Context, params UpdateLeadParams) (*Lead, error) {
  payload := map[string]any{
    "id":                   params.Id,
    "custom_fields_values": params.CustomFields,
  }
  if params.StatusId != 0 {
    payload["status_id"] = params.StatusId
  }
  if params.ContactId != 0 {
    payload["_embedded"] = map[string]any{
      "contacts": []map[string]int64{{"id": params.ContactId}},
    }
  }

  var embedded leadsEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodPatch,
    Path:   "/api/v4/leads",
    Body:   []map[string]any{payload},
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }
  if len(embedded.Embedded.Leads) == 0 {
    return nil, fmt.Errorf("lead missed in response")
  }

  return &embedded.Embedded.Leads[0], nil
}

func (c *Client) AddLeadNote(ctx context.Context, leadId int64, text string) error {
  err := c.call(ctx, callParams{
    Method: resty.MethodPost,
    Path:   fmt.Sprintf("/api/v4/leads/%d/notes", leadId),
    Body: []map[string]any{{
      "note_type": "common",
      "params":    map[string]string{"text": text},
    }},
  }, nil)
  if err != nil {
    return fmt.Errorf("c.call: %w", err)
  }
  return nil
}

func (c *Client) TaskTypes(ctx context.Context) ([]TaskType, error) {
  var embedded taskTypesEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodGet,
    Path:   "/api/v4/task_types",
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }

  return embedded.Embedded.TaskTypes, nil
}

type CreateTaskParams struct {
  LeadId            int64
  ResponsibleUserId int64
  Text              string
  TaskTypeId        int64
  CompleteTill      int64
}

func (c *Client) CreateTask(ctx context.Context, params CreateTaskParams) (*Task, error) {
  var embedded tasksEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodPost,
    Path:   "/api/v4/tasks",
    Body: []map[string]any{{
      "text":                params.Text,
      "task_type_id":        params.TaskTypeId,
      "complete_till":       params.CompleteTill,
      "responsible_user_id": params.ResponsibleUserId,
      "entity_id":           params.LeadId,
      "entity_type":         "leads",
    }},
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }
  if len(embedded.Embedded.Tasks) == 0 {
    return nil, fmt.Errorf("task missed in response")
  }

  return &embedded.Embedded.Tasks[0], nil
}

func (c *Client) ContactCustomFields(ctx context.Context) ([]CustomField, error) {
  var embedded customFieldsEmbedded

  err := c.call(ctx, callParams{
    Method: resty.MethodGet,
    Path:   "/api/v4/contacts/custom_fields",
  }, &embedded)
  if err != nil {
    return nil, fmt.Errorf("c.call: %w", err)
  }

  return embedded.Embedded.CustomFields, nil
}
