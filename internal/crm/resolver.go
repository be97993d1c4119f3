package crm

import (
  "context"
  "fmt"
  "regexp"
  "sort"
  "strconv"
  "strings"
  "sync"
  "time"

  set "github.com/deckarep/golang-set/v2"
  "github.com/samber/lo"
  log "github.com/sirupsen/logrus"

  "github.com/orangeflowers/maxbot/internal/deps/amocrm"
  "github.com/orangeflowers/maxbot/internal/models"
)

// Gateway is the amoCRM surface the resolver needs. Implemented by
// the REST client, faked in tests.
type Gateway interface {
  FindContacts(ctx context.Context, params amocrm.FindContactsParams) ([]amocrm.Contact, error)
  CreateContact(ctx context.Context, params amocrm.CreateContactParams) (*amocrm.Contact, error)
  UpdateContact(ctx context.Context, params amocrm.UpdateContactParams) (*amocrm.Contact, error)
  ContactLinks(ctx context.Context, contactId int64) ([]amocrm.Link, error)
  GetLead(ctx context.Context, leadId int64) (*amocrm.Lead, error)
  CreateLead(ctx context.Context, params amocrm.CreateLeadParams) (*amocrm.Lead, error)
  UpdateLead(ctx context.Context, params amocrm.UpdateLeadParams) (*amocrm.Lead, error)
  AddLeadNote(ctx context.Context, leadId int64, text string) error
  TaskTypes(ctx context.Context) ([]amocrm.TaskType, error)
  CreateTask(ctx context.Context, params amocrm.CreateTaskParams) (*amocrm.Task, error)
  ContactCustomFields(ctx context.Context) ([]amocrm.CustomField, error)
}

// Resolver reconciles messenger users with amoCRM contacts and deals.
type Resolver struct {
  deps  Dependencies
  retry RetryPolicy

  // Users whose open deal is already tagged with the traffic source.
  taggedUsers set.Set[int64]

  mu              sync.Mutex
  phoneFieldId    int64
  contactTaskType int64
}

type Dependencies struct {
  Gateway Gateway
}

func NewResolver(deps Dependencies) *Resolver {
  return &Resolver{
    deps:        deps,
    retry:       DefaultRetryPolicy(),
    taggedUsers: set.NewSet[int64](),
  }
}

func externalName(userId int64) string {
  return fmt.Sprintf("Пользователь MAX #%d", userId)
}

// FindContactByExternalId searches contacts whose external id field
// exactly matches the messenger user id. The API has no filter for
// text custom fields, so the query result is checked field by field.
func (r *Resolver) FindContactByExternalId(ctx context.Context, userId int64) (*amocrm.Contact, error) {
  contacts, err := r.deps.Gateway.FindContacts(ctx, amocrm.FindContactsParams{
    Query:      strconv.FormatInt(userId, 10),
    WithFields: true,
  })
  if err != nil {
    return nil, fmt.Errorf("gateway.FindContacts: %w", err)
  }

  value := strconv.FormatInt(userId, 10)

  found, ok := lo.Find(contacts, func(contact amocrm.Contact) bool {
    return contact.FieldValueString(contactExternalIdFieldId) == value
  })
  if !ok {
    return nil, nil
  }
  return &found, nil
}

func (r *Resolver) findContactByName(ctx context.Context, name string) (*amocrm.Contact, error) {
  contacts, err := r.deps.Gateway.FindContacts(ctx, amocrm.FindContactsParams{
    Query: name,
    Limit: 1,
  })
  if err != nil {
    return nil, fmt.Errorf("gateway.FindContacts: %w", err)
  }
  if len(contacts) == 0 {
    return nil, nil
  }
  return &contacts[0], nil
}

// SetContactExternalId stamps the messenger user id on the contact so
// later lookups skip the name search.
func (r *Resolver) SetContactExternalId(ctx context.Context, contactId, userId int64) error {
  _, err := r.deps.Gateway.UpdateContact(ctx, amocrm.UpdateContactParams{
    Id: contactId,
    CustomFields: []amocrm.CustomFieldValue{{
      FieldId: contactExternalIdFieldId,
      Values:  []amocrm.FieldValue{{Value: strconv.FormatInt(userId, 10)}},
    }},
  })
  if err != nil {
    return fmt.Errorf("gateway.UpdateContact: %w", err)
  }
  return nil
}

// ResolveContact finds the contact for a messenger user: first by the
// external id field, then by the generated name, backfilling the
// external id on a name hit.
func (r *Resolver) ResolveContact(ctx context.Context, userId int64) (*amocrm.Contact, error) {
  contact, err := r.FindContactByExternalId(ctx, userId)
  if err != nil {
    return nil, fmt.Errorf("r.FindContactByExternalId: %w", err)
  }
  if contact != nil {
    return contact, nil
  }

  contact, err = r.findContactByName(ctx, externalName(userId))
  if err != nil {
    return nil, fmt.Errorf("r.findContactByName: %w", err)
  }
  if contact == nil {
    return nil, nil
  }

  if err = r.SetContactExternalId(ctx, contact.Id, userId); err != nil {
    log.Errorf("crm.Resolver.ResolveContact: r.SetContactExternalId: %v", err)
  }
  return contact, nil
}

// FindLeadByContact walks the contact's lead links from newest to
// oldest and returns the first open one. When every deal is closed
// the newest closed deal is returned instead.
func (r *Resolver) FindLeadByContact(ctx context.Context, contactId int64) (*amocrm.Lead, error) {
  links, err := r.deps.Gateway.ContactLinks(ctx, contactId)
  if err != nil {
    return nil, fmt.Errorf("gateway.ContactLinks: %w", err)
  }

  leadIds := lo.FilterMap(links, func(link amocrm.Link, _ int) (int64, bool) {
    return link.ToEntityId, link.ToEntityType == "leads"
  })
  if len(leadIds) == 0 {
    return nil, nil
  }

  sort.Slice(leadIds, func(i, j int) bool { return leadIds[i] > leadIds[j] })

  for _, leadId := range leadIds {
    lead, err := r.deps.Gateway.GetLead(ctx, leadId)
    if err != nil {
      log.Warnf("crm.Resolver.FindLeadByContact: gateway.GetLead: lead %d: %v", leadId, err)
      continue
    }
    if !isClosedStatus(lead.StatusId) {
      return lead, nil
    }
  }

  lead, err := r.deps.Gateway.GetLead(ctx, leadIds[0])
  if err != nil {
    return nil, fmt.Errorf("gateway.GetLead: %w", err)
  }
  return lead, nil
}

type EnsureResult struct {
  Lead    *amocrm.Lead
  Contact *amocrm.Contact
  Created bool
}

// EnsureOpenLead guarantees the messenger user has a contact and an
// open deal, creating both when missing.
func (r *Resolver) EnsureOpenLead(ctx context.Context, userId int64, userName string) (*EnsureResult, error) {
  contact, err := r.ResolveContact(ctx, userId)
  if err != nil {
    return nil, fmt.Errorf("r.ResolveContact: %w", err)
  }

  if contact == nil {
    displayName := userName
    if displayName == "" {
      displayName = externalName(userId)
    }

    contact, err = r.deps.Gateway.CreateContact(ctx, amocrm.CreateContactParams{
      Name: displayName,
    })
    if err != nil {
      return nil, fmt.Errorf("gateway.CreateContact: %w", err)
    }

    if err = r.SetContactExternalId(ctx, contact.Id, userId); err != nil {
      log.Errorf("crm.Resolver.EnsureOpenLead: r.SetContactExternalId: %v", err)
    }
  }

  lead, err := r.FindLeadByContact(ctx, contact.Id)
  if err != nil {
    return nil, fmt.Errorf("r.FindLeadByContact: %w", err)
  }

  if lead != nil && !isClosedStatus(lead.StatusId) {
    return &EnsureResult{Lead: lead, Contact: contact}, nil
  }

  displayName := userName
  if displayName == "" {
    displayName = lo.CoalesceOrEmpty(contact.Name, externalName(userId))
  }

  lead, err = r.deps.Gateway.CreateLead(ctx, amocrm.CreateLeadParams{
    Name:      fmt.Sprintf("Новое обращение - %s", displayName),
    ContactId: contact.Id,
    CustomFields: []amocrm.CustomFieldValue{{
      FieldId: trafficSourceFieldId,
      Values:  []amocrm.FieldValue{{EnumId: trafficSourceMessenger}},
    }},
  })
  if err != nil {
    return nil, fmt.Errorf("gateway.CreateLead: %w", err)
  }

  log.Infof("crm.Resolver.EnsureOpenLead: created lead %d for user %d", lead.Id, userId)

  return &EnsureResult{Lead: lead, Contact: contact, Created: true}, nil
}

// TagTrafficSource marks the user's open deal as coming from the
// messenger. Tagged users are remembered so repeat chats do not hit
// the API again.
func (r *Resolver) TagTrafficSource(ctx context.Context, userId int64) error {
  if !r.taggedUsers.Add(userId) {
    return nil
  }

  err := r.retry.Do(ctx, func(ctx context.Context) error {
    contact, err := r.ResolveContact(ctx, userId)
    if err != nil {
      return fmt.Errorf("r.ResolveContact: %w", err)
    }
    if contact == nil {
      return fmt.Errorf("contact not found for user %d", userId)
    }

    lead, err := r.FindLeadByContact(ctx, contact.Id)
    if err != nil {
      return fmt.Errorf("r.FindLeadByContact: %w", err)
    }
    if lead == nil {
      return fmt.Errorf("lead not found for contact %d", contact.Id)
    }

    _, err = r.deps.Gateway.UpdateLead(ctx, amocrm.UpdateLeadParams{
      Id: lead.Id,
      CustomFields: []amocrm.CustomFieldValue{{
        FieldId: trafficSourceFieldId,
        Values:  []amocrm.FieldValue{{EnumId: trafficSourceMessenger}},
      }},
    })
    if err != nil {
      return fmt.Errorf("gateway.UpdateLead: %w", err)
    }
    return nil
  })

  if err != nil {
    // Let a later chat retry the tagging.
    r.taggedUsers.Remove(userId)
    return err
  }
  return nil
}

var hourRegex = regexp.MustCompile(`^(\d{1,2})`)

// deliveryTimestamp converts "20.12.2025" plus a time slot into a
// unix timestamp. The hour comes from the first number of the slot,
// noon when absent, shifted by the UTC+3 account timezone.
func deliveryTimestamp(date, timeSlot string) int64 {
  parts := strings.Split(date, ".")
  if len(parts) != 3 {
    return 0
  }

  day, errDay := strconv.Atoi(parts[0])
  month, errMonth := strconv.Atoi(parts[1])
  year, errYear := strconv.Atoi(parts[2])
  if errDay != nil || errMonth != nil || errYear != nil {
    return 0
  }

  hour := 12
  if match := hourRegex.FindString(timeSlot); match != "" {
    hour, _ = strconv.Atoi(match)
  }

  return time.Date(year, time.Month(month), day, hour-3, 0, 0, 0, time.UTC).Unix()
}

func orderFields(order *models.Order, branchEnumId int64) []amocrm.CustomFieldValue {
  cardText := order.CardText
  if cardText == "" {
    cardText = "Без подписи"
  }

  fulfillment := int64(fulfillmentDeliveryId)
  if order.Type == models.OrderTypePickup {
    fulfillment = fulfillmentPickupId
  }

  fields := []amocrm.CustomFieldValue{
    {FieldId: deliveryTimeFieldId, Values: []amocrm.FieldValue{{Value: order.Time}}},
    {FieldId: cardTextFieldId, Values: []amocrm.FieldValue{{Value: cardText}}},
    {FieldId: addressFieldId, Values: []amocrm.FieldValue{{Value: order.Address}}},
    {FieldId: yourNameFieldId, Values: []amocrm.FieldValue{{Value: order.YourName}}},
    {FieldId: yourPhoneFieldId, Values: []amocrm.FieldValue{{Value: order.YourPhone}}},
    {FieldId: fulfillmentFieldId, Values: []amocrm.FieldValue{{EnumId: fulfillment}}},
  }

  if order.RecipientName != "" {
    fields = append(fields, amocrm.CustomFieldValue{
      FieldId: recipientNameFieldId,
      Values:  []amocrm.FieldValue{{Value: order.RecipientName}},
    })
  }
  // A bare prefix means the field was left untouched in the form.
  if order.RecipientPhone != "" && order.RecipientPhone != "+7" {
    fields = append(fields, amocrm.CustomFieldValue{
      FieldId: recipientPhoneFieldId,
      Values:  []amocrm.FieldValue{{Value: order.RecipientPhone}},
    })
  }

  if timestamp := deliveryTimestamp(order.Date, order.Time); timestamp != 0 {
    fields = append(fields, amocrm.CustomFieldValue{
      FieldId: deliveryDateFieldId,
      Values:  []amocrm.FieldValue{{Value: timestamp}},
    })
  }

  if branchEnumId != 0 {
    fields = append(fields, amocrm.CustomFieldValue{
      FieldId: branchFieldId,
      Values:  []amocrm.FieldValue{{EnumId: branchEnumId}},
    })
  }

  return fields
}

type UpdateDealParams struct {
  Order        *models.Order
  UserId       int64
  BranchEnumId int64
}

// UpdateDealFromOrder writes a submitted order into the user's open
// deal: fills the order fields and moves the deal to the qualified
// status. The contact update is best effort since contacts created
// through the chat API reject REST updates.
func (r *Resolver) UpdateDealFromOrder(ctx context.Context, params UpdateDealParams) (*amocrm.Lead, error) {
  contact, err := r.ResolveContact(ctx, params.UserId)
  if err != nil {
    return nil, fmt.Errorf("r.ResolveContact: %w", err)
  }
  if contact == nil {
    return nil, fmt.Errorf("contact not found for user %d", params.UserId)
  }

  lead, err := r.FindLeadByContact(ctx, contact.Id)
  if err != nil {
    return nil, fmt.Errorf("r.FindLeadByContact: %w", err)
  }
  if lead == nil {
    return nil, fmt.Errorf("lead not found for contact %d", contact.Id)
  }

  updated, err := r.deps.Gateway.UpdateLead(ctx, amocrm.UpdateLeadParams{
    Id:           lead.Id,
    StatusId:     qualifiedStatusId,
    CustomFields: orderFields(params.Order, params.BranchEnumId),
  })
  if err != nil {
    return nil, fmt.Errorf("gateway.UpdateLead: %w", err)
  }

  if err = r.updateContactFromOrder(ctx, contact.Id, params.Order); err != nil {
    log.Warnf("crm.Resolver.UpdateDealFromOrder: r.updateContactFromOrder: %v", err)
  }

  return updated, nil
}

// UpdateDealById writes a submitted order straight into a known deal.
// Used for form links generated from the CRM side.
func (r *Resolver) UpdateDealById(ctx context.Context, order *models.Order, leadId, branchEnumId int64) (*amocrm.Lead, error) {
  updated, err := r.deps.Gateway.UpdateLead(ctx, amocrm.UpdateLeadParams{
    Id:           leadId,
    StatusId:     qualifiedStatusId,
    CustomFields: orderFields(order, branchEnumId),
  })
  if err != nil {
    return nil, fmt.Errorf("gateway.UpdateLead: %w", err)
  }
  return updated, nil
}

func (r *Resolver) contactPhoneFieldId(ctx context.Context) (int64, error) {
  r.mu.Lock()
  defer r.mu.Unlock()

  if r.phoneFieldId != 0 {
    return r.phoneFieldId, nil
  }

  fields, err := r.deps.Gateway.ContactCustomFields(ctx)
  if err != nil {
    return 0, fmt.Errorf("gateway.ContactCustomFields: %w", err)
  }

  field, ok := lo.Find(fields, func(field amocrm.CustomField) bool {
    return field.Code == "PHONE"
  })
  if !ok {
    return 0, fmt.Errorf("phone field not found among contact fields")
  }

  r.phoneFieldId = field.Id

  return field.Id, nil
}

func (r *Resolver) updateContactFromOrder(ctx context.Context, contactId int64, order *models.Order) error {
  params := amocrm.UpdateContactParams{
    Id:   contactId,
    Name: order.YourName,
  }

  if order.YourPhone != "" {
    phoneFieldId, err := r.contactPhoneFieldId(ctx)
    if err != nil {
      return fmt.Errorf("r.contactPhoneFieldId: %w", err)
    }
    params.CustomFields = []amocrm.CustomFieldValue{{
      FieldId: phoneFieldId,
      Values:  []amocrm.FieldValue{{Value: order.YourPhone}},
    }}
  }

  if _, err := r.deps.Gateway.UpdateContact(ctx, params); err != nil {
    return fmt.Errorf("gateway.UpdateContact: %w", err)
  }
  return nil
}

// SetLeadFormLink writes the generated order-form URL into the deal's
// link field so managers can send it to the customer.
func (r *Resolver) SetLeadFormLink(ctx context.Context, leadId int64, url string) error {
  _, err := r.deps.Gateway.UpdateLead(ctx, amocrm.UpdateLeadParams{
    Id: leadId,
    CustomFields: []amocrm.CustomFieldValue{{
      FieldId: formLinkFieldId,
      Values:  []amocrm.FieldValue{{Value: url}},
    }},
  })
  if err != nil {
    return fmt.Errorf("gateway.UpdateLead: %w", err)
  }
  return nil
}

// AddOrderNote attaches the full order text to the deal.
func (r *Resolver) AddOrderNote(ctx context.Context, leadId int64, text string) error {
  if err := r.deps.Gateway.AddLeadNote(ctx, leadId, text); err != nil {
    return fmt.Errorf("gateway.AddLeadNote: %w", err)
  }
  return nil
}

// CreateContactManagerTask puts a near-due task on the deal's
// responsible manager when the user asks to talk to a human.
func (r *Resolver) CreateContactManagerTask(ctx context.Context, userId int64) (*amocrm.Task, error) {
  contact, err := r.ResolveContact(ctx, userId)
  if err != nil {
    return nil, fmt.Errorf("r.ResolveContact: %w", err)
  }
  if contact == nil {
    return nil, fmt.Errorf("contact not found for user %d", userId)
  }

  lead, err := r.FindLeadByContact(ctx, contact.Id)
  if err != nil {
    return nil, fmt.Errorf("r.FindLeadByContact: %w", err)
  }
  if lead == nil {
    return nil, fmt.Errorf("lead not found for contact %d", contact.Id)
  }
  if lead.ResponsibleUserId == 0 {
    return nil, fmt.Errorf("lead %d has no responsible manager", lead.Id)
  }

  taskTypeId, err := r.contactTaskTypeId(ctx)
  if err != nil {
    return nil, fmt.Errorf("r.contactTaskTypeId: %w", err)
  }

  task, err := r.deps.Gateway.CreateTask(ctx, amocrm.CreateTaskParams{
    LeadId:            lead.Id,
    ResponsibleUserId: lead.ResponsibleUserId,
    Text:              "Клиент запросил связь с менеджером",
    TaskTypeId:        taskTypeId,
    CompleteTill:      time.Now().Add(2 * time.Minute).Unix(),
  })
  if err != nil {
    return nil, fmt.Errorf("gateway.CreateTask: %w", err)
  }

  log.Infof("crm.Resolver.CreateContactManagerTask: task %d created for lead %d", task.Id, lead.Id)

  return task, nil
}

func (r *Resolver) contactTaskTypeId(ctx context.Context) (int64, error) {
  r.mu.Lock()
  defer r.mu.Unlock()

  if r.contactTaskType != 0 {
    return r.contactTaskType, nil
  }

  types, err := r.deps.Gateway.TaskTypes(ctx)
  if err != nil {
    return 0, fmt.Errorf("gateway.TaskTypes: %w", err)
  }

  found, ok := lo.Find(types, func(taskType amocrm.TaskType) bool {
    return taskType.Name == "Связаться"
  })
  if !ok {
    // Fall back to the built-in call type.
    found = amocrm.TaskType{Id: 1}
  }

  r.contactTaskType = found.Id

  return found.Id, nil
}
