// Package anemometer holds the embedded frontend assets served by the
// daemon.
package anemometer

import "embed"

//go:embed static/*
var StaticFiles embed.FS
