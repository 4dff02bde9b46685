package passes

// ScanRequest carries either the raw token or the full QR text
type ScanRequest struct {
	Token  string `json:"token"`
	QRData string `json:"qrData"`
}
