package response

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type StandardApiResponse struct {
	Status     string `json:"status"`           // StatusSuccess or StatusError
	StatusCode int    `json:"status_code"`      // mirrors the HTTP status
	Message    string `json:"message"`          // human-readable summary
	Data       any    `json:"data,omitempty"`   // payload on success
	Errors     any    `json:"errors,omitempty"` // field errors or limit details
}
