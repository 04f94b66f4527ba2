package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// jsonOutput is set by the global --json flag.
var jsonOutput bool

// errReported marks a failure whose JSON error envelope was already
// written. It still makes the process exit non-zero.
var errReported = errors.New("error already reported")

// Response is the envelope every --json command writes to stdout.
type Response struct {
	OK       bool       `json:"ok"`
	Data     any        `json:"data,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
	Warnings []Warning  `json:"warnings,omitempty"`
	Meta     *Meta      `json:"meta,omitempty"`
}

// ErrorInfo is a failed command's error. Details may carry the partial
// result, for example the export data of a cancelled run.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Warning is a non-fatal problem, such as a broken link. Source is the
// vault-relative note it was found in, when there is one.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// Meta holds counts and timings. Count is notes processed for export and
// broken links for check.
type Meta struct {
	Count      int   `json:"count,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`
}

func isJSONOutput() bool {
	return jsonOutput
}

func outputJSON(resp Response) {
	writeJSON(os.Stdout, resp)
}

// writeJSON encodes resp to w. A response that cannot be encoded is
// replaced by an INTERNAL_ERROR envelope so the caller never sees an
// empty stdout.
func writeJSON(w io.Writer, resp Response) {
	buf, err := encodeResponse(resp)
	if err != nil {
		buf, _ = encodeResponse(Response{Error: &ErrorInfo{
			Code:    ErrInternal,
			Message: fmt.Sprintf("failed to encode JSON output: %v", err),
		}})
	}
	_, _ = w.Write(buf)
}

func encodeResponse(resp Response) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	// Wikilinks and arrows stay readable.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func outputSuccess(data any, meta *Meta) {
	outputSuccessWithWarnings(data, nil, meta)
}

func outputSuccessWithWarnings(data any, warnings []Warning, meta *Meta) {
	outputJSON(Response{OK: true, Data: data, Warnings: warnings, Meta: meta})
}

func outputError(code, message string, details any, suggestion string) {
	outputJSON(Response{Error: &ErrorInfo{
		Code:       code,
		Message:    message,
		Details:    details,
		Suggestion: suggestion,
	}})
}

// handleError reports err for the current output mode. In JSON mode the
// envelope is written and nil returned so cobra prints nothing more; in
// text mode the error is returned with the suggestion appended.
func handleError(code string, err error, suggestion string) error {
	if jsonOutput {
		outputError(code, err.Error(), nil, suggestion)
		return nil
	}
	if suggestion != "" {
		return fmt.Errorf("%w\n\n%s", err, suggestion)
	}
	return err
}

// reportError is handleError for callers that must stop cobra even in
// JSON mode, such as PersistentPreRunE.
func reportError(code string, err error, suggestion string) error {
	if err := handleError(code, err, suggestion); err != nil {
		return err
	}
	return errReported
}
