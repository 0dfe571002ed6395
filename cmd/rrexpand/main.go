// Command rrexpand expands the recurring events and to-dos of an iCalendar
// file, or a single ad-hoc rule, over a time range.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
