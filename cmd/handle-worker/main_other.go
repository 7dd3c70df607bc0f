//go:build !windows

// cmd/handle-worker/main_other.go
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("handle-worker only runs on Windows")
	os.Exit(1)
}
