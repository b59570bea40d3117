//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("TsvlinkNewParser", js.FuncOf(newParser))
	js.Global().Set("TsvlinkParse", js.FuncOf(parse))
	js.Global().Set("TsvlinkNormalize", js.FuncOf(normalize))
	js.Global().Set("TsvlinkCloseParser", js.FuncOf(closeParser))
	js.Global().Set("TsvlinkGetBuiltinSchemas", js.FuncOf(getBuiltinSchemas))

	// Keep WASM running
	<-make(chan struct{})
}
