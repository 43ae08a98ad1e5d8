package attendance

// ScanResult is the closed set of outcomes a scan validation can produce.
// Every decision branch maps to exactly one value so callers can handle each
// case without parsing free-form messages.
type ScanResult string

const (
	// ScanRecorded: valid token, first check-in for this student.
	ScanRecorded ScanResult = "RECORDED"
	// ScanAlreadyRecorded: valid token, student had already checked in.
	// Idempotent repeat, not an error.
	ScanAlreadyRecorded ScanResult = "ALREADY_RECORDED"
	// ScanTokenMismatch: the submitted token is stale or forged.
	ScanTokenMismatch ScanResult = "TOKEN_MISMATCH"
	// ScanSessionClosed: the session no longer accepts scans.
	ScanSessionClosed ScanResult = "SESSION_CLOSED"
	// ScanSessionNotFound: no session with the submitted id.
	ScanSessionNotFound ScanResult = "SESSION_NOT_FOUND"
	// ScanIdentityNotFound: the caller has no roster entry.
	ScanIdentityNotFound ScanResult = "IDENTITY_NOT_FOUND"
)

// Accepted reports whether the scan recorded (or had already recorded) the
// student's attendance.
func (r ScanResult) Accepted() bool {
	return r == ScanRecorded || r == ScanAlreadyRecorded
}
