package models

// UnknownRequestID is the placeholder the downstream system receives when a
// message never carried a request id.
const UnknownRequestID = "N/A"

// Envelope is the single message shape that travels between ingress, broker,
// and bridge. Producers always set ID and Body; RequestID rides along only
// when the original caller supplied one.
type Envelope struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	RequestID string `json:"request_id,omitempty"`
}

func (e Envelope) CorrelationID() string {
	if e.RequestID == "" {
		return UnknownRequestID
	}
	return e.RequestID
}

// EnvelopeForCall builds the wire message for a notification call. The
// phone number doubles as the message id.
func EnvelopeForCall(call SimpleCall, requestID string) Envelope {
	return Envelope{
		ID:        call.Phone,
		Body:      call.String(),
		RequestID: requestID,
	}
}
