package main

import "github.com/RMahshie/unifra/cmd/fractl/cmd"

func main() {
	cmd.Execute()
}
