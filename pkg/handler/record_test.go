package handler

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/fatallog"
)

func TestNewRecord(t *testing.T) {
	f := cliFixture(t)

	err := errors.NewBuilder(errors.ERecoverableError).
		WithMessage("bad cast").
		WithLocation("conv.go", 31).
		Build()

	rec := f.h.NewRecord(err)
	assert.Equal(t, "Recoverable Error", rec.Title)
	assert.Equal(t, "ERR-002", rec.Code)
	assert.Equal(t, "conv.go", rec.File)
	assert.Equal(t, 31, rec.Line)
	assert.Equal(t, "--flag value", rec.URL)
	assert.Equal(t, err.String(), rec.Message)
}

func TestNewRecordChain(t *testing.T) {
	f := cliFixture(t)

	root := stderrors.New("connection refused")
	middle := errors.NewBuilder(errors.EWarning).WithMessage("query failed").WithPrevious(root).Build()
	outer := errors.NewBuilder(errors.EUserError).WithMessage("page failed").WithPrevious(middle).Build()

	rec := f.h.NewRecord(outer)

	parts := strings.Split(rec.Message, "\r\n")
	require.Len(t, parts, 3)
	assert.Equal(t, outer.String(), parts[0])
	assert.Equal(t, middle.String(), parts[1])
	assert.Equal(t, "*errors.errorString: connection refused", parts[2])
}

func TestNewRecordPlainError(t *testing.T) {
	f := cliFixture(t)

	rec := f.h.NewRecord(stderrors.New("plain"))
	assert.Equal(t, "Uncaught Exception", rec.Title)
	assert.Equal(t, "EXC-001", rec.Code)
	assert.Empty(t, rec.File)
	assert.Zero(t, rec.Line)
}

func TestErrorRecordFields(t *testing.T) {
	rec := &ErrorRecord{Title: "t", Code: "c", File: "f", Line: 1, URL: "u", Message: "m"}

	var names []string
	for _, field := range rec.Fields() {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"title", "code", "file", "line", "url", "message"}, names)

	var nilRec *ErrorRecord
	assert.Nil(t, nilRec.Fields())
}

type emptyRecord struct{}

func (emptyRecord) Fields() []fatallog.Field { return nil }

func TestLogErrorIgnoresMalformed(t *testing.T) {
	tests := []struct {
		name string
		rec  fatallog.Record
	}{
		{name: "nil", rec: nil},
		{name: "typed nil", rec: (*ErrorRecord)(nil)},
		{name: "no fields", rec: emptyRecord{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := cliFixture(t)

			require.NoError(t, f.h.LogError(tt.rec))
			assert.Empty(t, f.logContent(t))
			assert.Equal(t, int64(0), f.rec.GetSnapshot()["log_writes_ok"])
		})
	}
}

func TestLogErrorAppends(t *testing.T) {
	f := cliFixture(t)

	existing := "date: 20200101000000\n\"title\": \"old\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.root, fatallog.FileName), []byte(existing), 0644))

	rec := &ErrorRecord{Title: "User Error", Code: "ERR-001", File: "a.go", Line: 3, URL: "x", Message: "line1\r\nline2"}
	require.NoError(t, f.h.LogError(rec))

	content := f.logContent(t)
	require.True(t, strings.HasPrefix(content, existing))

	added := strings.Split(strings.TrimSuffix(strings.TrimPrefix(content, existing), "\n"), "\n")
	assert.Equal(t, []string{
		"date: 20261019153005",
		`"title": "User Error"`,
		`"code": "ERR-001"`,
		`"file": "a.go"`,
		`"line": 3`,
		`"url": "x"`,
		`"message": "line1\r\nline2"`,
	}, added)
	assert.Equal(t, int64(1), f.rec.GetSnapshot()["log_writes_ok"])
}

func TestLogException(t *testing.T) {
	f := cliFixture(t)

	require.NoError(t, f.h.LogException(errors.New(errors.EUserError, "logged")))
	assert.Contains(t, f.logContent(t), `"title": "User Error"`)
}
