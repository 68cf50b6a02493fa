// Package integrationtest runs backup pipelines against real external tools.
//
// The tests need tar on PATH and are behind the integration build tag:
//
//	go test -tags integration ./integrationtest/...
package integrationtest
