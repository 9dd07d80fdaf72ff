package main

import "github.com/example/vaxsched/cmd"

func main() {
	cmd.Execute()
}
