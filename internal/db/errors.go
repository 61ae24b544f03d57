package db

import "errors"

// Sentinel errors shared by every backend.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// Operation names carried by Error. The Redis family uses the command name.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpScan        = "SCAN"
	OpUnlink      = "UNLINK"
	OpHSet        = "HSET"
	OpGet         = "GET"
	OpSet         = "SET"
	OpIncrBy      = "INCRBY"
	OpExpire      = "EXPIRE"

	OpSQLSchema = "sql.schema"
	OpSQLUpsert = "sql.upsert"
	OpSQLDelete = "sql.delete"
	OpSQLSearch = "sql.search"
	OpSQLCount  = "sql.count"
)

// Error is a backend failure annotated with the operation and the key, index
// or table it touched.
type Error struct {
	Op     string
	Target string
	Err    error
}

// Wrap returns nil for a nil err.
func Wrap(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Target: target, Err: err}
}

func (e *Error) Error() string {
	if e.Target == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Target + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
