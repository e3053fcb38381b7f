package vulkan

import "unsafe"

// BytesToUint32 reinterprets SPIR-V bytes as words. len(b) must be a multiple of 4.
func BytesToUint32(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}
