// Package upload defines the selfie-upload collaborator boundary. The
// negotiation core never touches capture or transfer mechanics; it only
// consumes the terminal success of an upload to fire the SELFIE_UPLOADED
// write (delivered to the engines as an IntentSelfieUploaded trigger).
package upload

// Progress is one event of an upload's progress stream. The stream ends
// with either Done=true and a RemoteRef, or a non-nil Err.
type Progress struct {
	Fraction  float64
	Done      bool
	RemoteRef string
	Err       error
}

// Uploader starts one upload and reports progress until a terminal event.
// The returned channel is closed after the terminal event is delivered.
type Uploader interface {
	Start(sessionID, localRef string) <-chan Progress
}
