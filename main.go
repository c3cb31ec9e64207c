package main

import "github.com/frahmantamala/office-erp/cmd"

func main() {
	cmd.Execute()
}
