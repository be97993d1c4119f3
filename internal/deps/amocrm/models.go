package amocrm

type FieldValue struct {
  Value    any    `json:"value,omitempty"`
  EnumId   int64  `json:"enum_id,omitempty"`
  EnumCode string `json:"enum_code,omitempty"`
}

type CustomFieldValue struct {
  FieldId   int64        `json:"field_id,omitempty"`
  FieldCode string       `json:"field_code,omitempty"`
  Values    []FieldValue `json:"values"`
}

type Contact struct {
  Id                int64              `json:"id"`
  Name              string             `json:"name"`
  ResponsibleUserId int64              `json:"responsible_user_id"`
  CustomFields      []CustomFieldValue `json:"custom_fields_values"`
}

// FieldValueString returns the first value of a custom field as text.
func (c Contact) FieldValueString(fieldId int64) string {
  for _, field := range c.CustomFields {
    if field.FieldId != fieldId {
      continue
    }
    if len(field.Values) == 0 {
      return ""
    }
    if value, ok := field.Values[0].Value.(string); ok {
      return value
    }
  }
  return ""
}

type Lead struct {
  Id                int64              `json:"id"`
  Name              string             `json:"name"`
  Price             int64              `json:"price"`
  StatusId          int64              `json:"status_id"`
  PipelineId        int64              `json:"pipeline_id"`
  ResponsibleUserId int64              `json:"responsible_user_id"`
  CustomFields      []CustomFieldValue `json:"custom_fields_values,omitempty"`
}

type Link struct {
  ToEntityId   int64  `json:"to_entity_id"`
  ToEntityType string `json:"to_entity_type"`
}

type Task struct {
  Id           int64  `json:"id"`
  Text         string `json:"text"`
  TaskTypeId   int64  `json:"task_type_id"`
  CompleteTill int64  `json:"complete_till"`
}

type TaskType struct {
  Id   int64  `json:"id"`
  Name string `json:"name"`
}

type CustomField struct {
  Id   int64  `json:"id"`
  Code string `json:"code"`
  Name string `json:"name"`
}

type contactsEmbedded struct {
  Embedded struct {
    Contacts []Contact `json:"contacts"`
  } `json:"_embedded"`
}

type leadsEmbedded struct {
  Embedded struct {
    Leads []Lead `json:"leads"`
  } `json:"_embedded"`
}

type linksEmbedded struct {
  Embedded struct {
    Links []Link `json:"links"`
  } `json:"_embedded"`
}

type tasksEmbedded struct {
  Embedded struct {
    Tasks []Task `json:"tasks"`
  } `json:"_embedded"`
}

type taskTypesEmbedded struct {
  Embedded struct {
    TaskTypes []TaskType `json:"task_types"`
  } `json:"_embedded"`
}

type customFieldsEmbedded struct {
  Embedded struct {
    CustomFields []CustomField `json:"custom_fields"`
  } `json:"_embedded"`
}

type oauthTokens struct {
  AccessToken  string `json:"access_token"`
  RefreshToken string `json:"refresh_token"`
  ExpiresIn    int64  `json:"expires_in"`
}
