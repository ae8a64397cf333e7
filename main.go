package main

import "github.com/edgeflare/pglist/cmd/pglist"

func main() {
	pglist.Main()
}
