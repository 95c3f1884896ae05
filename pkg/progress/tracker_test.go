package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNopSinkIsSilent(t *testing.T) {
	sink := Nop()
	sink.SetMessage("ignored")
	sink.SetTotal(10)
	sink.Inc(3)
	sink.Finish()
}

func TestTrackerRendersFinalLine(t *testing.T) {
	var buf bytes.Buffer
	tr := newTracker(&buf)

	tr.SetMessage("Packing")
	tr.SetTotal(4)
	tr.Inc(4)
	tr.Finish()

	// Finish waits for the render loop to stop, so the buffer is safe
	// to read here.
	out := buf.String()
	assert.Contains(t, out, "Packing: 4/4")
	assert.Contains(t, out, "100.0%")
}

func TestTrackerMessageResetsCount(t *testing.T) {
	var buf bytes.Buffer
	tr := newTracker(&buf)

	tr.SetMessage("Reading chunks")
	tr.SetTotal(10)
	tr.Inc(10)
	tr.SetMessage("Rebuilding files")
	tr.SetTotal(2)
	tr.Inc(1)
	tr.Finish()

	assert.Contains(t, buf.String(), "Rebuilding files: 1/2")
}

func TestTrackerFinishIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	tr := newTracker(&buf)
	tr.SetMessage("Done")
	tr.Finish()
	tr.Finish()
}

func TestTrackerSilentWhenUntouched(t *testing.T) {
	var buf bytes.Buffer
	tr := newTracker(&buf)
	tr.Finish()
	assert.Empty(t, buf.String())
}
