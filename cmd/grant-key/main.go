// Package main provides a one-shot utility for grant key generation.
//
// It emits the asymmetric keypair used to sign link-invite grants.
package main

import (
	"os"

	"github.com/louisbranch/leasehold/internal/platform/config"
	"github.com/louisbranch/leasehold/internal/tools/grantkey"
)

func main() {
	if err := grantkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate grant key: %v", err)
	}
}
