package main

import (
	"log"
)

var (
	Version string
	Commit  string
	Date    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
