package manufacture

import (
	"fmt"
	"runtime"
	"strings"
)

// CaptureStack returns the current goroutine stack without the runtime panic frames.
func CaptureStack() []byte {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return cleanStackTrace(buf[:n])
}

// PanicError converts a recovered value into a HANDLER_PANIC error that
// carries the handler name and stack as metadata.
func PanicError(handler string, recovered any, stack []byte) error {
	var source error
	if err, ok := recovered.(error); ok {
		source = err
	} else {
		source = fmt.Errorf("%v", recovered)
	}
	return NewError(ErrHandlerPanic, fmt.Sprintf("handler %s panicked: %v", handler, recovered), source, map[string]any{
		"handler": handler,
		"stack":   string(stack),
	})
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	at := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			at = i
			break
		}
	}

	// drop the panic() call line and its file reference
	if at >= 0 && at+2 < len(lines) {
		lines = lines[at+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}
