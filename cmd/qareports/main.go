// qareports ingests CAD QA export workbooks, classifies every part number
// and serves the results over HTTP.
//
// Usage:
//
//	qareports serve
//	qareports ingest <file>...
//	qareports stats [--format text|json|yaml] [--charts]
//	qareports sample
//	qareports clear [--purge-remote]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
