package main

import "github.com/qaportal/portal/cmd/portalapi/cmd"

func main() {
	cmd.Execute()
}
