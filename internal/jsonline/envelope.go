// Package jsonline builds and parses the single-object JSON envelope the
// file-backed scrivener writes, one per file:
// {"schemaVersion","pos","type","payload"}. The flusher's default
// serializer shares only SchemaVersion; its own line shape is built with
// encoding/json.
//
// Encoding uses jsonenc's allocation-light string/number appenders, in the
// same style stumpy uses to build its log lines, rather than
// encoding/json's reflection-based Marshal, since this is the hot path for
// every write.
package jsonline

import (
	"encoding/json"
	"strconv"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// SchemaVersion is embedded in every envelope, so a future incompatible
// format revision can be rejected by readers rather than misinterpreted.
const SchemaVersion = `1`

// AppendEnvelope appends a single-line envelope to dst and returns the
// extended slice. payload must already be valid JSON (typically produced
// by a scrivener.Codec's Encode).
func AppendEnvelope(dst []byte, pos int64, typeTag string, payload []byte) []byte {
	dst = append(dst, `{"schemaVersion":`...)
	dst = jsonenc.AppendString(dst, SchemaVersion)
	dst = append(dst, `,"pos":`...)
	dst = strconv.AppendInt(dst, pos, 10)
	dst = append(dst, `,"type":`...)
	dst = jsonenc.AppendString(dst, typeTag)
	dst = append(dst, `,"payload":`...)
	dst = append(dst, payload...)
	dst = append(dst, '}')
	return dst
}

type envelope struct {
	SchemaVersion string          `json:"schemaVersion"`
	Pos           int64           `json:"pos"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
}

// ParseEnvelope parses a single envelope. Unlike AppendEnvelope, this uses
// encoding/json: it is not the hot path (decoding only happens on tail
// catch-up and backward reads, not on every write), and reflection-based
// decoding is the simplest correct way to tolerate whitespace/field-order
// variance across schemaVersion revisions.
func ParseEnvelope(line []byte) (pos int64, typeTag string, payload []byte, err error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return 0, ``, nil, err
	}
	return env.Pos, env.Type, env.Payload, nil
}
