package main

import "github.com/mvp-joe/indexsched/internal/cli"

func main() {
	cli.Execute()
}
