// Command dynfield inspects and edits the dynamic fields stored in a database.
// Keys and values are strings.
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
