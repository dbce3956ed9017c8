// Package resultparse recovers structured metrics from load-runner result
// artifacts. Runner output is not trusted to be clean UTF-8 JSON: artifacts
// observed in the field arrive GBK-encoded, wrapped in shell noise, or
// peppered with control bytes, so parsing is a recovery ladder rather than a
// single json.Unmarshal.
package resultparse

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/loadpress/loadpress/pkg/errors"
)

// Metrics holds the structured outcome extracted from a runner artifact.
// Every field is optional; an artifact that parses but omits a metric yields
// a nil field, never a zero value.
type Metrics struct {
	QPS                *float64 `json:"qps"`
	AvgLatencyMS       *float64 `json:"avg_latency_ms"`
	P95LatencyMS       *float64 `json:"p95_latency_ms"`
	P99LatencyMS       *float64 `json:"p99_latency_ms"`
	ErrorRate          *float64 `json:"error_rate"`
	TotalRequests      *int64   `json:"total_requests"`
	SuccessfulRequests *int64   `json:"successful_requests"`
	FailedRequests     *int64   `json:"failed_requests"`
	DataFilePath       *string  `json:"data_file_path"`
}

// DecodeText converts runner output bytes to a UTF-8 string. It tries UTF-8
// first, then GBK, then Latin-1. Latin-1 maps every byte, so this never
// fails; worst case the text is mojibake but remains loggable.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	if decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(b); err == nil {
		return string(decoded)
	}

	decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(decoded)
}

// Parse extracts Metrics from raw artifact bytes.
//
// The recovery ladder, in order:
//  1. decode the bytes as UTF-8, then GBK, then Latin-1;
//  2. slice from the first '{' to the last '}' to shed surrounding noise;
//  3. unmarshal, and on failure strip every byte outside printable ASCII
//     plus newline, carriage return and tab, then unmarshal once more.
//
// The first decoding that yields a well-formed object wins. When every rung
// fails, the error is a malformed-artifact error carrying the last cause.
func Parse(raw []byte) (*Metrics, error) {
	if len(raw) == 0 {
		return nil, errors.NewMalformedArtifactError("result artifact is empty")
	}

	var lastErr error
	for _, decoded := range decodeCandidates(raw) {
		sliced, ok := sliceObject(decoded)
		if !ok {
			lastErr = errors.NewMalformedArtifactError("no JSON object found in artifact")
			continue
		}

		var m Metrics
		if err := json.Unmarshal(sliced, &m); err == nil {
			return &m, nil
		} else {
			lastErr = err
		}

		// Control bytes inside string values defeat strict JSON parsing.
		// Stripping everything outside printable ASCII loses non-ASCII
		// payload text but salvages the numeric metrics.
		stripped := stripNonPrintable(sliced)
		if err := json.Unmarshal(stripped, &m); err == nil {
			return &m, nil
		} else {
			lastErr = err
		}
	}

	return nil, errors.NewMalformedArtifactError("failed to parse result artifact").WithCause(lastErr)
}

// decodeCandidates returns the byte forms to attempt, in priority order.
// Valid UTF-8 input needs no alternatives.
func decodeCandidates(raw []byte) [][]byte {
	if utf8.Valid(raw) {
		return [][]byte{raw}
	}

	candidates := make([][]byte, 0, 2)
	if gbk, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw); err == nil {
		candidates = append(candidates, gbk)
	}
	if latin, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		candidates = append(candidates, latin)
	}
	return candidates
}

// sliceObject cuts the input down to the outermost {...} region.
func sliceObject(b []byte) ([]byte, bool) {
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end < start {
		return nil, false
	}
	return b[start : end+1], true
}

// stripNonPrintable removes every byte outside 0x20..0x7E except \n, \r, \t.
func stripNonPrintable(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if (c >= 0x20 && c <= 0x7E) || c == '\n' || c == '\r' || c == '\t' {
			out = append(out, c)
		}
	}
	return out
}
