package lockorder

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id from its stack
// trace header ("goroutine 123 [running]:"). It is a debug-only
// convenience, not meant for anything performance-sensitive.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
