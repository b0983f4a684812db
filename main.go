package main

import "github.com/jcdickinson/refdoc/cmd"

func main() {
	cmd.Execute()
}
