// Command uhdrtool encodes, decodes and inspects JPEG/R (UltraHDR) images.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("uhdrtool failed")
		os.Exit(1)
	}
}
