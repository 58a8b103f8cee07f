package main

import "github.com/theaxonlab/physioevents/cmd"

func main() {
	cmd.Execute()
}
