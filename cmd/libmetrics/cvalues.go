package main

/*
#include <stdlib.h>
#include <stdint.h>
*/
import "C"

import "unsafe"

// Conversions from Go values to the C arguments the exported functions take.
// Each returns a release func for the C memory it allocated.

func cString(s string) (*C.char, func()) {
	p := C.CString(s)
	return p, func() { C.free(unsafe.Pointer(p)) }
}

// cStrings builds a NULL-terminated array of C strings
func cStrings(names []string) (**C.char, func()) {
	var ptr *C.char
	arr := (**C.char)(C.calloc(C.size_t(len(names)+1), C.size_t(unsafe.Sizeof(ptr))))
	slots := unsafe.Slice(arr, len(names)+1)
	for i, name := range names {
		slots[i] = C.CString(name)
	}
	return arr, func() {
		for _, p := range slots[:len(names)] {
			C.free(unsafe.Pointer(p))
		}
		C.free(unsafe.Pointer(arr))
	}
}

func cInts(vals []int) (*C.int, func()) {
	n := max(len(vals), 1)
	arr := (*C.int)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.int(0)))))
	slots := unsafe.Slice(arr, n)
	for i, v := range vals {
		slots[i] = C.int(v)
	}
	return arr, func() { C.free(unsafe.Pointer(arr)) }
}

func cBytes(b []byte) (unsafe.Pointer, C.uint32_t, func()) {
	p := C.CBytes(b)
	return p, C.uint32_t(len(b)), func() { C.free(p) }
}

// bufferBytes copies a buffer returned by a query back into Go memory, or
// returns nil when p was not handed out by this library.
func bufferBytes(p unsafe.Pointer) []byte {
	if p == nil {
		return nil
	}
	n, ok := live.sizeOf(uintptr(p))
	if !ok {
		return nil
	}
	return C.GoBytes(p, C.int(n))
}
