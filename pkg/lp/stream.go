package lp

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeMultipleJSON decodes the application/x-multiple-json wire
// format (spec §6): a sequence of 4-byte big-endian length prefixes
// each followed by that many bytes of a `{key: value}` JSON object. It
// returns every decoded field, with fieldOrder recording the order in
// which the fields arrived.
//
// It reads r to EOF before returning: no field is handed to the caller
// before the whole body has been read, and there is no per-field
// result a caller can wait on separately.
func DecodeMultipleJSON(r io.Reader) (fields map[string]json.RawMessage, fieldOrder []string, err error) {
	fields = make(map[string]json.RawMessage)

	var lenBuf [4]byte
	for {
		_, err := io.ReadFull(r, lenBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("lp: failed to read multiple-json length prefix: %w", err)
		}

		length := binary.BigEndian.Uint32(lenBuf[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("lp: failed to read multiple-json payload: %w", err)
		}

		var record map[string]json.RawMessage
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, nil, fmt.Errorf("lp: failed to parse multiple-json record: %w", err)
		}
		for key, value := range record {
			fields[key] = value
			fieldOrder = append(fieldOrder, key)
		}
	}

	return fields, fieldOrder, nil
}

// EncodeMultipleJSON is the request-side counterpart: it writes each
// key/value pair of values as its own length-prefixed JSON object, in
// the order given by keys. Keys with no entry in values are skipped, so
// only the values present when it is called are written.
func EncodeMultipleJSON(w io.Writer, keys []string, values map[string]any) error {
	for _, key := range keys {
		value, ok := values[key]
		if !ok {
			continue
		}
		payload, err := json.Marshal(map[string]any{key: value})
		if err != nil {
			return fmt.Errorf("lp: failed to marshal multiple-json field %q: %w", key, err)
		}

		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("lp: failed to write multiple-json length prefix: %w", err)
		}
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("lp: failed to write multiple-json payload: %w", err)
		}
	}
	return nil
}
