package temples

// SlotResponse is a slot with its derived availability
type SlotResponse struct {
	Time            string         `json:"time"`
	Status          SlotStatus     `json:"status"`
	TotalCapacity   int            `json:"total_capacity"`
	TotalBooked     int            `json:"total_booked"`
	RemainingByTier map[string]int `json:"remaining_by_tier"`
}

// NewSlotResponse builds the response for a single slot
func NewSlotResponse(s Slot) SlotResponse {
	remaining := make(map[string]int, len(s.CapacityByTier))
	for tierID := range s.CapacityByTier {
		remaining[tierID] = s.Remaining(tierID)
	}
	return SlotResponse{
		Time:            s.Time,
		Status:          s.Status(),
		TotalCapacity:   s.TotalCapacity(),
		TotalBooked:     s.TotalBooked(),
		RemainingByTier: remaining,
	}
}
