package main

import "github.com/oselz/viewfinder/cmd/viewfinder/commands"

func main() {
	commands.Execute()
}
