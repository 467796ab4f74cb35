package store

import "errors"

// ErrNotFound is returned by lookups scoped to a tenant or id that do not
// match any row. Handlers translate it to the not_found error code without
// distinguishing "wrong tenant" from "unknown id", so IDs are never leaked.
var ErrNotFound = errors.New("not found")
