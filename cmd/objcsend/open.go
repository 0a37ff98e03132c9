//go:build darwin || linux || freebsd

package main

import (
	"github.com/chazu/objcsend/config"
	"github.com/chazu/objcsend/native"
	"github.com/chazu/objcsend/objc"
)

func openBackend(cfg *config.Config) (objc.Backend, error) {
	family, err := cfg.Family()
	if err != nil {
		return nil, err
	}
	arch, err := cfg.Arch()
	if err != nil {
		return nil, err
	}
	rt, err := native.Open(cfg.Runtime.Library, native.WithFamily(family), native.WithArch(arch))
	if err != nil {
		return nil, err
	}
	return rt, nil
}
