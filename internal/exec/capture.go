package exec

import "bytes"

// captureCapBytes is the hard cap on in-memory capture per exec call. Once
// exceeded, the oldest bytes are discarded in whole-byte units; spec.md §9
// treats this as a tunable default, not an externally required constant.
const captureCapBytes = 32 * 1024 * 1024

// tailBufferBytes bounds the "what has it printed so far" quick-query
// buffer.
const tailBufferBytes = 8 * 1024

// maxDeltaEvents caps live OutputDeltaEvent emissions per call; bytes
// beyond the cap still count toward the capture and dropped counters but
// produce no additional Delta events until End.
const maxDeltaEvents = 2048

// flushThresholdBytes, together with the 200ms interval in readStream,
// governs when pending output is flushed as a Delta event.
const flushThresholdBytes = 256 * 1024

// Capture accumulates output for a single stream (stdout or stderr),
// enforcing the 32 MiB cap with whole-byte discard-from-head semantics and
// tracking dropped line/byte counts for the boundary property in spec.md
// §8.
type Capture struct {
	buf          bytes.Buffer
	tail         bytes.Buffer
	droppedBytes int64
	droppedLines int64
}

// Write appends data to the capture, discarding from the head in whole-byte
// units once the cap is exceeded.
func (c *Capture) Write(data []byte) {
	c.buf.Write(data)
	c.writeTail(data)

	if c.buf.Len() <= captureCapBytes {
		return
	}

	excess := c.buf.Len() - captureCapBytes
	discarded := c.buf.Next(excess)
	c.droppedBytes += int64(len(discarded))
	c.droppedLines += int64(bytes.Count(discarded, []byte{'\n'}))
}

func (c *Capture) writeTail(data []byte) {
	c.tail.Write(data)
	if c.tail.Len() <= tailBufferBytes {
		return
	}
	excess := c.tail.Len() - tailBufferBytes
	c.tail.Next(excess)
}

// Bytes returns the currently retained capture.
func (c *Capture) Bytes() []byte { return c.buf.Bytes() }

// String returns the currently retained capture as a string.
func (c *Capture) String() string { return c.buf.String() }

// Tail returns the most recent tailBufferBytes of output.
func (c *Capture) Tail() string { return c.tail.String() }

// Dropped returns the cumulative dropped byte and line counts.
func (c *Capture) Dropped() (bytesDropped, linesDropped int64) {
	return c.droppedBytes, c.droppedLines
}

// DeltaBudget tracks the per-call cap on live Delta event emissions.
type DeltaBudget struct {
	emitted int
}

// Allow reports whether another Delta event may be emitted, incrementing
// the internal counter if so.
func (d *DeltaBudget) Allow() bool {
	if d.emitted >= maxDeltaEvents {
		return false
	}
	d.emitted++
	return true
}

// Emitted returns how many Delta events have been allowed so far.
func (d *DeltaBudget) Emitted() int { return d.emitted }
