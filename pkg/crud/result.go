package crud

// Envelope messages returned by successful operations.
const (
	MessageCreated = "Successfully created"
	MessageFetched = "Successfully fetched"
	MessageUpdated = "Successfully updated"
	MessageDeleted = "Successfully deleted"
)

// Result is the uniform envelope returned by every service operation. List
// results carry DocLength, single-document and metadata results omit it.
// Transports add the error and stack fields when shaping failures, the
// service itself never populates them.
type Result struct {
	Message       string      `json:"message"`
	SuccessStatus bool        `json:"success_status"`
	Data          interface{} `json:"data"`
	DocLength     *int        `json:"doc_length,omitempty"`
}

// ModelResult is one block of a multi-descriptor read, in descriptor order.
type ModelResult struct {
	Model     string     `json:"model"`
	Docs      []Document `json:"docs"`
	DocLength int        `json:"doc_length"`
}

func newResult(message string, data interface{}) *Result {
	return &Result{
		Message:       message,
		SuccessStatus: true,
		Data:          data,
	}
}

func newListResult(message string, data interface{}, docLength int) *Result {
	result := newResult(message, data)
	result.DocLength = &docLength
	return result
}
