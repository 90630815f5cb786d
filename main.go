package main

import "github.com/fold-ecosystemics/espstream/cmd"

func main() {
	cmd.Execute()
}
