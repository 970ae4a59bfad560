package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Field is one key/value pair on a log record. A repeated key keeps the
// last value.
type Field struct {
	Key string
	val any
}

func String(k, v string) Field                 { return Field{Key: k, val: v} }
func Int(k string, v int) Field                { return Field{Key: k, val: v} }
func Int64(k string, v int64) Field            { return Field{Key: k, val: v} }
func Uint64(k string, v uint64) Field          { return Field{Key: k, val: v} }
func Bool(k string, v bool) Field              { return Field{Key: k, val: v} }
func Duration(k string, v time.Duration) Field { return Field{Key: k, val: v} }
func Any(k string, v any) Field                { return Field{Key: k, val: v} }

// Err records err under "err". A nil error adds nothing.
func Err(err error) Field {
	if err == nil {
		return Field{}
	}
	return Field{Key: errKey, val: err}
}

const errKey = "err"

func (f Field) add(e *zerolog.Event) {
	if f.Key == "" {
		return
	}
	switch v := f.val.(type) {
	case string:
		e.Str(f.Key, v)
	case int:
		e.Int(f.Key, v)
	case int64:
		e.Int64(f.Key, v)
	case uint64:
		e.Uint64(f.Key, v)
	case bool:
		e.Bool(f.Key, v)
	case time.Duration:
		e.Dur(f.Key, v)
	case error:
		e.AnErr(f.Key, v)
	default:
		e.Interface(f.Key, v)
	}
}
