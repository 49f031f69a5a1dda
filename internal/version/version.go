// Package version provides build and version information for Diagram Engine.
package version

// Version is the current release version of Diagram Engine.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/DiagramEngine/internal/version.Version=x.y.z"
var Version = "0.3.0"
