package main

import "github.com/Ririin-28/IS-RPT-SAES-sub003/cmd/saesadmin/cmd"

func main() {
	cmd.Execute()
}
