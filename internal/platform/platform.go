// Package platform derives the short, stable runtime tag the bridge client
// announces in its HELLO frame.
package platform

import "runtime"

// Tag returns a short string identifying the client runtime, such as
// "go-linux-amd64". It is pure and does not probe hardware.
func Tag() string {
	return "go-" + runtime.GOOS + "-" + runtime.GOARCH
}
