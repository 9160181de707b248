package genai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log"
)

// Decoder turns a raw generation response body into a lazy, finite,
// non-restartable sequence of text fragments. The body is a sequence of
// newline-delimited JSON objects shaped {"chunk": string}; a line that fails
// to parse is logged and skipped, never fatal. Fragments come out in arrival
// order, nothing is duplicated.
//
// The non-streaming backend mode returns one JSON object {"response": string}
// with no trailing newline; the decoder recognizes that shape at end of
// stream and emits it as a single fragment. Any other unterminated remainder
// is discarded, it cannot be a complete JSON line.
type Decoder struct {
	body     io.ReadCloser
	reader   *bufio.Reader
	logger   *log.Logger
	fragment string
	err      error
	done     bool
}

func NewDecoder(body io.ReadCloser, logger *log.Logger) *Decoder {
	return &Decoder{
		body:   body,
		reader: bufio.NewReader(body),
		logger: logger,
	}
}

// Next advances to the next fragment. It returns false when the stream is
// exhausted or broken; check Err afterwards to tell which.
func (d *Decoder) Next() bool {
	if d.done {
		return false
	}
	for {
		line, err := d.reader.ReadBytes('\n')
		if err == io.EOF {
			d.done = true
			return d.decodeRemainder(line)
		}
		if err != nil {
			// Transport failure mid-stream. Fragments decoded so far stand.
			d.err = err
			d.done = true
			return false
		}

		if fragment, ok := d.decodeLine(line); ok {
			d.fragment = fragment
			return true
		}
	}
}

// Fragment returns the current fragment. Valid after Next returned true.
func (d *Decoder) Fragment() string { return d.fragment }

// Err reports the transport error that broke the stream, if any.
func (d *Decoder) Err() error { return d.err }

// Close abandons the stream by closing the underlying body.
func (d *Decoder) Close() error {
	d.done = true
	return d.body.Close()
}

func (d *Decoder) decodeLine(line []byte) (string, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return "", false
	}

	var parsed ChunkLine
	if err := json.Unmarshal(line, &parsed); err != nil {
		d.logger.Printf("[WARN] Skipping undecodable stream line: %v", err)
		return "", false
	}
	if parsed.Chunk != nil {
		return *parsed.Chunk, true
	}
	if parsed.Response != nil {
		return *parsed.Response, true
	}
	d.logger.Printf("[WARN] Skipping stream line without chunk payload")
	return "", false
}

// decodeRemainder handles whatever trailed the last newline when the stream
// closed. Only a complete non-streaming object survives; partial lines are
// dropped.
func (d *Decoder) decodeRemainder(line []byte) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false
	}

	var parsed ChunkLine
	if err := json.Unmarshal(line, &parsed); err != nil {
		d.logger.Printf("[WARN] Discarding unterminated stream remainder (%d bytes)", len(line))
		return false
	}
	if parsed.Response != nil {
		d.fragment = *parsed.Response
		return true
	}
	if parsed.Chunk != nil {
		d.fragment = *parsed.Chunk
		return true
	}
	return false
}
