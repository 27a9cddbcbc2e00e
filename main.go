// Package main is the entry point for the crmetrics CLI tool, which samples
// Clash Royale battles and reports card usage and win rates.
package main

import "github.com/pable/go-cr-metrics/cmd"

func main() {
	cmd.Execute()
}
