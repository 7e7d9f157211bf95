package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/cli"
)

func main() {
	if err := cli.NewRootCmd(cli.DialGRPC).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
