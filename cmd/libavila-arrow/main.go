// Command libavila-arrow builds the C ABI of the library:
//
//	go build -buildmode=c-shared -o libavila_arrow.so ./cmd/libavila-arrow
//
// The exported symbols mirror the lifecycle package.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"github.com/avila-org/avila-arrow/lifecycle"
)

// versionCStr is allocated once and never freed. Callers may hold the
// returned pointer for the lifetime of the process.
var versionCStr = C.CString(lifecycle.Version)

//export avila_arrow_version
func avila_arrow_version() *C.char {
	return versionCStr
}

//export avila_arrow_init
func avila_arrow_init() C.int32_t {
	return C.int32_t(lifecycle.Init())
}

func main() {}
