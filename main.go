package main

import "github.com/loganalyzer/logview/cmd"

func main() {
	cmd.Execute()
}
