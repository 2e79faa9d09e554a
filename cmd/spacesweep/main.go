package main

import (
	"fmt"
	"os"

	"spacesweep/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "spacesweep:", err)
		os.Exit(1)
	}
}
