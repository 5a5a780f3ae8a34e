// Command foldsync keeps a local folder and a remote folder in sync.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
