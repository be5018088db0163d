package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/artivault/internal/ctl"
)

func main() {
	if err := ctl.NewRootCommand(ctl.Open).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
