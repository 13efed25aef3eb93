package main

import "github.com/vksagar82/society-management-app-sub001/cmd"

func main() {
	cmd.Execute()
}
