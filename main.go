package main

import "github.com/YohannParis/jmap-blog/cmd"

var version = "v0.3.1"

func main() {
	cmd.Execute(version)
}
