package main

import "github.com/jmcleod/weavesync/cmd/weavesync/cmd"

func main() {
	cmd.Execute()
}
