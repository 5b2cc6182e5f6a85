package leapsecs

import "sync"

//go:generate go run github.com/karasz/gtleap leapgen -o builtin_table.go

var (
	builtinOnce  sync.Once
	builtinTable *Table
)

// Builtin returns the table compiled from the bundled leap-seconds.list.
// It is built on first use and shared afterwards.
func Builtin() *Table {
	builtinOnce.Do(func() {
		builtinTable = MustNew(builtinEntries)
	})
	return builtinTable
}
