// Provide error wrapper with created locaion and error kind.
//
// Usage:
//
// ```
// wrapped := xerrors.Wrap(err)
// schemaErr := xerrors.WrapAs(xerrors.KindSchema, err)
// ```
//
// returns new error object wraps `err`.
//
// `wrapped` knows filename, line, and the name of function where itself is created.
//
// When you read message of this, replace
//
//	s/<-/\n/
//
// and it gives you "stacks" of where you marks.
//
// Kinds are errors themselves, so
//
//	errors.Is(schemaErr, xerrors.KindSchema)
//
// holds however deep the error is wrapped afterward.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind classifies failures of the pipeline.
//
// The set of kinds is closed: use one of the Kind* values.
type Kind string

const (
	KindIO              Kind = "IOError"
	KindSchema          Kind = "SchemaError"
	KindExternalService Kind = "ExternalServiceError"
	KindTraining        Kind = "TrainingError"
)

func (k Kind) Error() string {
	return string(k)
}

type ErrWithCaller struct {
	file     string
	line     int
	funcname string
	note     string
	kind     Kind
	err      error
}

func (e *ErrWithCaller) File() string {
	return e.file
}

func (e *ErrWithCaller) Line() int {
	return e.line
}

// Kind of this error. Empty if it is not classified at this level.
func (e *ErrWithCaller) Kind() Kind {
	return e.kind
}

func (e *ErrWithCaller) Error() string {
	head := fmt.Sprintf(`@ %s "%s" l%d`, e.funcname, e.file, e.line)
	if e.kind != "" {
		head += " [" + string(e.kind) + "]"
	}
	if e.note != "" {
		head += " (" + e.note + ")"
	}
	return head + " <- " + e.err.Error()
}

func (e *ErrWithCaller) Unwrap() error {
	return e.err
}

// Is reports kind matching, so that errors.Is finds a Kind anywhere in the chain.
func (e *ErrWithCaller) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.kind != "" && e.kind == k
}

func New(text string) error {
	return wrap("", "", errors.New(text), 1)
}

func Wrap(err error) error {
	return wrap("", "", err, 1)
}

func WrapAsOuter(err error, depth int) error {
	return wrap("", "", err, depth+1)
}

func WrapWithNote(note string, err error) error {
	return wrap("", note, err, 1)
}

func WrapAs(kind Kind, err error) error {
	return wrap(kind, "", err, 1)
}

func WrapAsWithNote(kind Kind, note string, err error) error {
	return wrap(kind, note, err, 1)
}

// KindOf returns the outermost kind found in err's chain.
//
// When nothing in the chain is classified, it returns ("", false).
func KindOf(err error) (Kind, bool) {
	for err != nil {
		switch e := err.(type) {
		case Kind:
			return e, true
		case *ErrWithCaller:
			if e.kind != "" {
				return e.kind, true
			}
		}
		err = errors.Unwrap(err)
	}
	return "", false
}

func wrap(kind Kind, note string, err error, depth int) error {
	if err == nil {
		return nil
	}
	pc, file, line, ok := runtime.Caller(depth + 1)
	funcname := "(unknown func)"
	if !ok {
		file = "?"
		line = -1
	}
	fn := runtime.FuncForPC(pc)
	if fn != nil {
		funcname = fn.Name()
	}

	return &ErrWithCaller{
		funcname: funcname,
		file:     file,
		line:     line,
		note:     note,
		kind:     kind,
		err:      err,
	}
}
