package main

import "os"

func main() {
	rootCmd := newRootCommand()
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
