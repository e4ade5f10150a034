// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the image fetch and the messaging gateway.
// WhatsApp media URLs serve a few megabytes at most; 15s is generous.
var HTTPClient = &http.Client{
	Timeout: 15 * time.Second,
}
