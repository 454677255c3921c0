package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestSimpleProgressBasic(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(100)
	progress.Update(50)
	progress.Finish()

	output := buf.String()
	if !strings.Contains(output, "Progress:") {
		t.Error("expected progress output to contain 'Progress:'")
	}
	if !strings.Contains(output, "docs/s") {
		t.Error("expected progress output to report a docs/s rate")
	}
	if !strings.Contains(output, "(50/100)") {
		t.Error("expected intermediate update to render (50/100)")
	}
	if !strings.Contains(output, "(100/100)") {
		t.Error("expected Finish to render the batch as complete")
	}
}

func TestSimpleProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf).(*SimpleProgress)

	// An empty batch should not render a bar or panic.
	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	if strings.Contains(buf.String(), "Progress:") {
		t.Error("empty batch should not render a progress bar")
	}
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(100)
	progress.Error(fmt.Errorf("document 7: malformed spans"))

	output := buf.String()
	if !strings.Contains(output, "Error:") {
		t.Error("expected error output to contain 'Error:'")
	}
	if !strings.Contains(output, "malformed spans") {
		t.Error("expected error output to contain the failure message")
	}
}

func TestSimpleProgressConcurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(1000)

	// Batch workers report completion concurrently.
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(start int) {
			for j := 0; j < 100; j++ {
				progress.Update(int64(start*100 + j))
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	progress.Finish()

	if buf.Len() == 0 {
		t.Error("expected some progress output")
	}
	if !strings.Contains(buf.String(), "(1000/1000)") {
		t.Error("expected Finish to render the full batch count")
	}
}

func TestNewProgressReporterNilWriter(t *testing.T) {
	// Should default to stdout, not panic
	progress := NewProgressReporter(nil)
	if progress == nil {
		t.Error("NewProgressReporter(nil) should not return nil")
	}

	progress.Start(10)
	progress.Update(5)
	progress.Finish()
}
