package response

// Body is the uniform envelope every endpoint answers with. Success is
// derived from the status code so handlers cannot disagree with it.
type Body struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data,omitempty"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
}

func OK(statusCode int, data any, message string) Body {
	return Body{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
		Success:    true,
	}
}

func Error(statusCode int, message string, errs ...string) Body {
	return Body{
		StatusCode: statusCode,
		Message:    message,
		Success:    false,
		Errors:     errs,
	}
}
