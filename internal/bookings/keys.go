package bookings

// LedgerKey is the storage key for a temple's active booking, optionally
// scoped to a visitor device.
func LedgerKey(deviceID, templeID string) string {
	if deviceID == "" {
		return "queue-" + templeID
	}
	return "device:" + deviceID + ":queue-" + templeID
}
