package main

import "waitroom/cmd"

func main() {
	cmd.Execute()
}
