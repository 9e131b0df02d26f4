package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
	DB               string `json:"db"`
	Storage          string `json:"storage"`
	Classifier       bool   `json:"classifier_configured"`
	Optimizer        bool   `json:"optimizer_configured"`
	CompressionCount int64  `json:"compression_count"`
}
