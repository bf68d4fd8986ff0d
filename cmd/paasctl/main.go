package main

var version = "dev"

func main() {
	rootCmd.Version = version
	Execute()
}
