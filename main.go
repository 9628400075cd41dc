package main

import "genpool/cmd"

func main() {
	cmd.Run()
}
