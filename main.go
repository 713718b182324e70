package main

import "github.com/parlaymkt/auction-relayer/cmd"

func main() {
	cmd.Execute()
}
