package main

import (
	"dedupstore/internal/content"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: fingerprint <file>...")
		os.Exit(1)
	}

	failed := false
	for _, path := range os.Args[1:] {
		f, err := os.Open(path)
		if err != nil {
			fmt.Printf("Error opening %s: %v\n", path, err)
			failed = true
			continue
		}
		sum, err := content.Fingerprint(f)
		_ = f.Close()
		if err != nil {
			fmt.Printf("Error hashing %s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s  %s\n", sum, path)
	}

	if failed {
		os.Exit(1)
	}
}
