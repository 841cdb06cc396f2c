//go:build !linux

package envi

import "os"

func adviseSequential(*os.File) {}
