package testutil

import "fmt"

// NewTestDSN names a shared in-memory sqlite database. Foreign keys are
// enabled on every pooled connection, as in the backend's own DSN.
func NewTestDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
}
