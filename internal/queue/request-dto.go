package queue

// SelectSlotRequest selects a darshan slot by its HH:MM label
type SelectSlotRequest struct {
	SlotTime string `json:"slotTime" binding:"required"`
}

// SelectTierRequest selects a pricing tier in the chosen slot
type SelectTierRequest struct {
	TierID string `json:"tierId" binding:"required"`
}

// PayRequest carries the visitor details collected before payment
type PayRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
	PartySize   int    `json:"partySize"` // defaults to 1
}

// LeaveQueueRequest leaves the queue or, for change_slot, moves to NewSlot
type LeaveQueueRequest struct {
	Reason  string `json:"reason" binding:"required"`
	Details string `json:"details"`
	NewSlot string `json:"newSlot"`
}
