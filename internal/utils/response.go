package utils

import "time"

// APIResponse is the envelope the back-office endpoints answer with. The
// timestamp lets an operator line a response up against the audit trail the
// same call wrote.
type APIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func SuccessResponse(message string, data any) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ErrorResponse keeps the human summary in Message and the underlying error
// text in Detail.
func ErrorResponse(message, detail string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}
