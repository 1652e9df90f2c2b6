package main

import "github.com/vietddude/breadwatch/internal/cli"

func main() {
	cli.Execute()
}
