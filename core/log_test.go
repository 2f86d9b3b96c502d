package core

import (
	"bytes"
	"testing"

	logrus "github.com/sirupsen/logrus"
)

func TestSetLoggerRedirectsOutput(t *testing.T) {
	var buf bytes.Buffer
	custom := logrus.New()
	custom.SetOutput(&buf)
	custom.SetLevel(logrus.DebugLevel)

	prev := log
	SetLogger(custom)
	defer func() { log = prev }()

	p := NewPool(1)
	if _, err := p.Acquire(32); err != nil {
		t.Fatalf("acquire1: %v", err)
	}
	if _, err := p.Acquire(32); err == nil {
		t.Fatalf("expected exhaustion on second acquire with cap 1")
	}

	if buf.Len() == 0 {
		t.Fatalf("expected pool exhaustion to be logged through the injected logger")
	}
}

func TestSetLoggerNilRestoresStandardLogger(t *testing.T) {
	prev := log
	defer func() { log = prev }()

	SetLogger(nil)
	if log != logrus.StandardLogger() {
		t.Fatalf("expected SetLogger(nil) to restore logrus.StandardLogger()")
	}
}
