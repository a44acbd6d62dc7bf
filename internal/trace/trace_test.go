package trace

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestEventDoneWritesToSink(t *testing.T) {
	var buf bytes.Buffer
	Sink(&buf)

	ev := Event("job-1", 3)
	ev.Done()

	out := buf.String()
	if len(out) == 0 || out[0] != '[' {
		t.Fatalf("sink output %q does not open the JSON array", out)
	}

	// Trim the leading '[' and trailing ',' to parse the single event object.
	body := out[1 : len(out)-1]
	var decoded PendingEvent
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		t.Fatalf("Unmarshal(%q): %v", body, err)
	}
	if decoded.Name != "job-1" {
		t.Errorf("Name = %q, want %q", decoded.Name, "job-1")
	}
	if decoded.Tid != 3 {
		t.Errorf("Tid = %d, want 3", decoded.Tid)
	}
	if decoded.Type != "X" {
		t.Errorf("Type = %q, want %q", decoded.Type, "X")
	}
}
