package crm

// Custom field and enum ids of the amoCRM account the bot works
// against. Taken from the account's field setup.
const (
  // Contact fields.
  contactExternalIdFieldId = 3031503

  // Lead enum fields.
  fulfillmentFieldId     = 2952799
  fulfillmentDeliveryId  = 1490019
  fulfillmentPickupId    = 1490021
  trafficSourceFieldId   = 2952895
  trafficSourceMessenger = 1807553
  branchFieldId          = 3023309

  // Lead value fields.
  deliveryTimeFieldId   = 2952511
  cardTextFieldId       = 2551395
  addressFieldId        = 2553145
  yourNameFieldId       = 3031541
  yourPhoneFieldId      = 3031543
  recipientNameFieldId  = 2952773
  recipientPhoneFieldId = 2952771
  deliveryDateFieldId   = 2551383
  formLinkFieldId       = 3031591

  // Deals move here once the order form is filled in.
  qualifiedStatusId = 61597534
)

// Terminal lead statuses: won and lost.
var closedStatuses = []int64{142, 143}

func isClosedStatus(statusId int64) bool {
  for _, closed := range closedStatuses {
    if statusId == closed {
      return true
    }
  }
  return false
}
