package http

// APIResponse is the envelope every endpoint returns. The HTTP status is
// always 200; the logical status lives inside the envelope so clients
// have one decode path for success and failure.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError is one field-level failure from request validation.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"name"`
	Message string                 `json:"message,omitempty" example:"Name is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse wraps list payloads with a total count.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
