// Package main provides the nestcache CLI: an offline-first caching proxy
// for a field logging web page and its map tiles, plus tools to inspect and
// maintain its cache partitions.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
