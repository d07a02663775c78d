package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "museflow"}

	root.AddCommand(serveCMD(), migrateCMD(), runCMD(), toolsCMD())
	_ = root.Execute()
}
