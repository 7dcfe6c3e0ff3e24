package main

import (
	"fmt"
	"os"

	"github.com/avila-org/avila-arrow/lifecycle"
)

const Name = "avila-arrow"

func main() {
	fmt.Printf("%s v%s\n", Name, lifecycle.Version)
	fmt.Println("Arrow-native compute runtime")

	if status := lifecycle.Init(); status != lifecycle.StatusOK {
		fmt.Fprintf(os.Stderr, "initialization failed with status %d\n", status)
		os.Exit(1)
	}
	fmt.Println("Status: initialized")
	os.Exit(0)
}
