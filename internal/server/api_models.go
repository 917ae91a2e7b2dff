package server

// StartScanRequest is the payload for submitting a link.
type StartScanRequest struct {
	URL string `json:"url" example:"https://bit.ly/3xyz"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"job not found"`
}
