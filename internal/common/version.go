package common

// Version is reported by the health endpoint. Overridable at build time:
//
//	go build -ldflags "-X github.com/filestodata/filestodata/internal/common.Version=..."
var Version = "0.7.0"
