// Command rasterstream computes band statistics, RX anomaly scores and
// destriped images of large rasters by streaming them block by block.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/robert-malhotra/go-rasterstream/rasterio/envi"
	_ "github.com/robert-malhotra/go-rasterstream/rasterio/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := a.execute(ctx, newRootCmd(a)); err != nil {
		fmt.Fprintln(os.Stderr, "rasterstream:", err)
		stop()
		os.Exit(1)
	}
}
