package main

import "snowstream/cmd"

func main() {
	cmd.Execute()
}
