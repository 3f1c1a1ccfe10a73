package log

import "testing"

func TestNewReturnsUsableLogger(t *testing.T) {
	logger := New("corepki-test", true)
	// Must not panic when emitting a record with no syslog daemon present.
	Audit(logger, AuditEvent{
		Action: "test.event",
		Serial: "0a1b",
		CAName: "test-ca",
		Fields: map[string]any{"reason": 1},
	})
}
