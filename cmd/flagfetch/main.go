package main

import "github.com/vietddude/flagfetch/internal/cli"

func main() {
	cli.Execute()
}
