package handler

import (
	stderrors "errors"
	"strings"

	"github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/fatallog"
)

// chainSeparator joins the textual forms of a cause chain
const chainSeparator = "\r\n"

// ErrorRecord is the structured entry persisted for one terminal event
type ErrorRecord struct {
	Title   string `json:"title"`
	Code    string `json:"code"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Fields implements fatallog.Record
func (r *ErrorRecord) Fields() []fatallog.Field {
	if r == nil {
		return nil
	}
	return []fatallog.Field{
		{Name: "title", Value: r.Title},
		{Name: "code", Value: r.Code},
		{Name: "file", Value: r.File},
		{Name: "line", Value: r.Line},
		{Name: "url", Value: r.URL},
		{Name: "message", Value: r.Message},
	}
}

// NewRecord builds the record for err. Title and code come from the code
// registry keyed by the error's code; the message holds the full textual form
// of every error in the chain, outermost first.
func (h *Handler) NewRecord(err error) *ErrorRecord {
	var (
		code int
		file string
		line int
	)
	var he *errors.HandlerError
	if stderrors.As(err, &he) {
		code, file, line = he.Code, he.File, he.Line
	}

	def := errors.Lookup(errors.Severity(code))

	chain := errors.Chain(err)
	parts := make([]string, 0, len(chain))
	for _, e := range chain {
		parts = append(parts, errors.Describe(e))
	}

	return &ErrorRecord{
		Title:   def.Name,
		Code:    def.Code,
		File:    file,
		Line:    line,
		URL:     h.GetCurrentUri(),
		Message: strings.Join(parts, chainSeparator),
	}
}

// LogException builds the record for err and appends it to the fatal log
func (h *Handler) LogException(err error) error {
	return h.LogError(h.NewRecord(err))
}

// LogError appends rec to the fatal log. A nil or empty record is ignored.
func (h *Handler) LogError(rec fatallog.Record) error {
	if rec == nil {
		return nil
	}
	if len(rec.Fields()) == 0 {
		return nil
	}

	err := h.writer.Write(rec)
	h.metrics.RecordLogWrite(err == nil)
	return err
}

func messageOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
