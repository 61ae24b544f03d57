package chi

import (
	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// TurnDTO is one question/answer pair of the caller-held history.
type TurnDTO struct {
	User      string `json:"user" validate:"max=8000"`
	Assistant string `json:"assistant" validate:"max=8000"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question             string    `json:"question" validate:"required,notblank,max=4000"`
	History              []TurnDTO `json:"history" validate:"max=50,dive"`
	LastRetrievedContent string    `json:"last_retrieved_content" validate:"max=64000"`
}

// QueryResponse carries the answer and the updated conversation state.
type QueryResponse struct {
	Answer               string    `json:"answer"`
	RetrievedCount       int       `json:"retrieved_count"`
	History              []TurnDTO `json:"history"`
	LastRetrievedContent string    `json:"last_retrieved_content"`
	Evidence             string    `json:"evidence"`
}

// RetrieveRequest is the body of POST /retrieve.
type RetrieveRequest struct {
	Question string    `json:"question" validate:"required,notblank,max=4000"`
	History  []TurnDTO `json:"history" validate:"max=50,dive"`
}

// DocumentDTO is one retrieved record.
type DocumentDTO struct {
	EntityType string  `json:"entity_type"`
	EntityID   string  `json:"entity_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// RetrieveResponse exposes the first two pipeline stages.
type RetrieveResponse struct {
	RewrittenQuery string        `json:"rewritten_query"`
	Documents      []DocumentDTO `json:"documents"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func turnsFromDTO(in []TurnDTO) []conversation.Turn {
	out := make([]conversation.Turn, len(in))
	for i, t := range in {
		out[i] = conversation.Turn{User: t.User, Assistant: t.Assistant}
	}
	return out
}

func turnsToDTO(in []conversation.Turn) []TurnDTO {
	out := make([]TurnDTO, len(in))
	for i, t := range in {
		out[i] = TurnDTO{User: t.User, Assistant: t.Assistant}
	}
	return out
}

func documentsToDTO(in []retrieval.Document) []DocumentDTO {
	out := make([]DocumentDTO, len(in))
	for i, d := range in {
		out[i] = DocumentDTO{
			EntityType: d.EntityType(),
			EntityID:   d.EntityID(),
			Content:    d.Content(),
			Similarity: d.Similarity(),
		}
	}
	return out
}
