package main

import "github.com/frahmantamala/scale-custody/cmd"

func main() {
	cmd.Execute()
}
