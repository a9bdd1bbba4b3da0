package notification

import "context"

// Message is the payload published for each outbound patient notification.
// Credential is the caller's bearer token, forwarded so the delivery side
// can authenticate the origin of the message.
type Message struct {
	PatientID  string `json:"patient_id"`
	Body       string `json:"message"`
	Credential string `json:"credential,omitempty"`
}

// Notifier dispatches a best-effort notification to a patient. Delivery
// failures must never affect the lifecycle outcome; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, patientID, message, credential string) error
}
