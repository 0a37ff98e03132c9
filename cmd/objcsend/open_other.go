//go:build !(darwin || linux || freebsd)

package main

import (
	"fmt"
	"runtime"

	"github.com/chazu/objcsend/config"
	"github.com/chazu/objcsend/objc"
)

func openBackend(*config.Config) (objc.Backend, error) {
	return nil, fmt.Errorf("no Objective-C runtime support on %s", runtime.GOOS)
}
