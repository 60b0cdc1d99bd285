/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/hermesportal/cmd/hermes/cmd"

func main() {
	cmd.Execute()
}
