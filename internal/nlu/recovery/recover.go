// internal/nlu/recovery/recover.go
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "viora-nlu/internal/common/errors"
	"viora-nlu/internal/common/logger"
)

// closureSuffixes is tried in order; the first one that yields exactly one
// JSON object wins. The suffixes starting with a quote only parse by closing
// an unterminated string, so they take effect only with
// Options.AcceptTruncatedStrings.
var closureSuffixes = []string{
	"", "}", "}}", "}}}",
	`"}`, `"}}`,
	`"]}`, `"]}}`,
	"]}", "]}}",
}

// Suffixes returns the closure attempt sequence.
func Suffixes() []string {
	return append([]string(nil), closureSuffixes...)
}

type Options struct {
	// AcceptTruncatedStrings keeps a parse that only succeeded by closing
	// an unterminated string. Such values are cut at an arbitrary point,
	// so they are rejected unless this is set.
	AcceptTruncatedStrings bool
}

// Result is the outcome of one recovery. Tree is nil and Err is set when
// nothing could be recovered.
type Result struct {
	Tree      map[string]interface{}
	Candidate string
	Suffix    string
	Attempts  int
	Truncated bool
	Err       error
}

func (r Result) Recovered() bool {
	return r.Err == nil && r.Tree != nil
}

// Recoverer pulls a JSON object out of raw generated text. It holds no
// mutable state and is safe for concurrent use.
type Recoverer struct {
	opts   Options
	logger logger.Logger
}

func New(opts Options, log logger.Logger) *Recoverer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Recoverer{opts: opts, logger: log}
}

var (
	errNotObject     = errors.New("value is not a JSON object")
	errTrailingInput = errors.New("unexpected input after JSON object")
)

// Recover runs span extraction, separator repair and progressive closure.
func (r *Recoverer) Recover(raw string) Result {
	span, found := ExtractSpan(raw)
	candidate := RepairSeparators(span)

	res := Result{Candidate: candidate}
	truncatedString := endsInString(candidate)

	var lastErr error
	for _, suffix := range closureSuffixes {
		res.Attempts++
		tree, err := parseObject(candidate + suffix)
		if err != nil {
			lastErr = err
			continue
		}
		if truncatedString && strings.HasPrefix(suffix, `"`) && !r.opts.AcceptTruncatedStrings {
			lastErr = fmt.Errorf("suffix %q closes a truncated string", suffix)
			r.logger.Debug("Rejected recovery through truncated string", map[string]interface{}{
				"suffix":   suffix,
				"attempts": res.Attempts,
			})
			continue
		}

		res.Tree = tree
		res.Suffix = suffix
		res.Truncated = truncatedString
		r.logger.Debug("Recovered structured output", map[string]interface{}{
			"suffix":   suffix,
			"attempts": res.Attempts,
			"repaired": candidate != span,
		})
		return res
	}

	details := "no closing suffix produced a JSON object"
	if !found {
		details = "no record span in generated text"
	}
	res.Err = apperrors.NewExtractionFailedError(details, lastErr)
	r.logger.Debug("Structured output unrecoverable", map[string]interface{}{
		"attempts": res.Attempts,
		"text":     logger.Snippet(raw),
		"error":    lastErr,
	})
	return res
}

// ExtractSpan slices the trimmed text from the first '{' to the last '}'.
// Without a '{' the whole trimmed text is returned and found is false.
// Without a '}' after the first '{', the span runs to the end of the text.
func ExtractSpan(raw string) (span string, found bool) {
	text := strings.TrimSpace(raw)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text, false
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return text[start:], true
	}
	return text[start : end+1], true
}

func parseObject(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var tree map[string]interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errNotObject
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingInput
	}
	return tree, nil
}
