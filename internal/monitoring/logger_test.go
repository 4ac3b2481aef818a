package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// Now set to nil and verify it doesn't call the previous logger.
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestSetLogWriter(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var buf bytes.Buffer
	SetLogWriter(&buf, "[replay] ")
	Logf("frame %d: %s", 3, "ok")

	out := buf.String()
	if !strings.HasPrefix(out, "[replay] ") {
		t.Errorf("expected prefix, got %q", out)
	}
	if !strings.Contains(out, "frame 3: ok") {
		t.Errorf("expected formatted message, got %q", out)
	}

	buf.Reset()
	SetLogWriter(nil, "")
	Logf("muted")
	if buf.Len() != 0 {
		t.Errorf("nil writer should mute the logger, got %q", buf.String())
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}
