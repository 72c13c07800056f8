package main

import (
	"github.com/datazip-inc/lakeplan/protocol"

	_ "github.com/datazip-inc/lakeplan/destination/memory"
	_ "github.com/datazip-inc/lakeplan/destination/parquet"
)

func main() {
	protocol.Execute()
}
