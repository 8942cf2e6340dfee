package audit

// Action is the non-sensitive code recorded for every audited operation
type Action string

const (
	ActionDeliveryCreated        Action = "delivery_created"
	ActionDeliveryClaimed        Action = "delivery_claimed"
	ActionDeliveryPickedUp       Action = "delivery_picked_up"
	ActionDeliveryCanceled       Action = "delivery_canceled"
	ActionDeliveryCompleted      Action = "delivery_completed"
	ActionMessageSent            Action = "message_sent"
	ActionRatingSubmitted        Action = "rating_submitted"
	ActionAddressAccessed        Action = "address_accessed"
	ActionAdminViewedRecipient   Action = "admin_viewed_recipient"
	ActionVolunteerRegistered    Action = "volunteer_registered"
	ActionVolunteerApproved      Action = "volunteer_approved"
	ActionVolunteerRejected      Action = "volunteer_rejected"
	ActionVolunteerSuspended     Action = "volunteer_suspended"
	ActionVolunteerReinstated    Action = "volunteer_reinstated"
	ActionIDUploadRegistered     Action = "id_upload_registered"
	ActionIDUploadExpired        Action = "id_upload_expired"
	ActionRecipientRegistered    Action = "recipient_registered"
	ActionRecipientContactUpdate Action = "recipient_contact_updated"
	ActionRecipientDeleted       Action = "recipient_deleted"
	ActionRecipientDataPurged    Action = "recipient_data_purged"
	ActionEncryptionKeyRotated   Action = "encryption_key_rotated"
)

var knownActions = map[Action]struct{}{
	ActionDeliveryCreated:        {},
	ActionDeliveryClaimed:        {},
	ActionDeliveryPickedUp:       {},
	ActionDeliveryCanceled:       {},
	ActionDeliveryCompleted:      {},
	ActionMessageSent:            {},
	ActionRatingSubmitted:        {},
	ActionAddressAccessed:        {},
	ActionAdminViewedRecipient:   {},
	ActionVolunteerRegistered:    {},
	ActionVolunteerApproved:      {},
	ActionVolunteerRejected:      {},
	ActionVolunteerSuspended:     {},
	ActionVolunteerReinstated:    {},
	ActionIDUploadRegistered:     {},
	ActionIDUploadExpired:        {},
	ActionRecipientRegistered:    {},
	ActionRecipientContactUpdate: {},
	ActionRecipientDeleted:       {},
	ActionRecipientDataPurged:    {},
	ActionEncryptionKeyRotated:   {},
}

// IsValid checks if the action is a known code
func (a Action) IsValid() bool {
	_, ok := knownActions[a]
	return ok
}

// String returns the string representation of Action
func (a Action) String() string {
	return string(a)
}
