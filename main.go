package main

import "github.com/guimove/rmqscaler/cmd"

func main() {
	cmd.Execute()
}
