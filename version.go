package main

import (
	"strings"
)

// VERSION is major.minor.patch+date of the first of the release month.
const (
	VERSION = "1.0.0+20261001"
	MODULE  = "gpioctl"
)

// Version returns the application version as string.
func Version() string {
	return strings.TrimSpace(MODULE + " V" + strings.Split(VERSION, "+")[0])
}
