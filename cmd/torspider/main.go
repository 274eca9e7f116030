// Package main provides the entry point for the torspider CLI.
//
// torspider crawls the web and Tor onion services from a set of seed URLs,
// routing .onion hosts through a SOCKS5 proxy and archiving every fetched
// page to a document store.
//
// Usage:
//
//	torspider crawl http://example.onion
//	torspider crawl --seeds-file seeds.txt --store mongodb
//
// See --help for all available options.
package main

func main() {
	Execute()
}
