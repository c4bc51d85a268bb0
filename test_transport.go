package lancar

import "net/http"

// TestTransport replaces every client's transport while installed and receives
// each completed call, in completion order. See package lancartest.
type TestTransport interface {
	http.RoundTripper
	LogCall(call *Call)
}

// InstallTestTransport routes every call in the process through tt until
// UninstallTestTransport is called. Clients created before installation are
// intercepted too.
func InstallTestTransport(tt TestTransport) {
	global.test.Store(&testSlot{transport: tt})
}

// UninstallTestTransport removes tt if it is the active test transport.
func UninstallTestTransport(tt TestTransport) {
	if slot := global.test.Load(); slot != nil && slot.transport == tt {
		global.test.CompareAndSwap(slot, nil)
	}
}

func activeTestTransport() TestTransport {
	if slot := global.test.Load(); slot != nil {
		return slot.transport
	}
	return nil
}
