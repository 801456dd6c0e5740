package model

// Frame is a captured still. Data is stored exactly as the camera feed sent it.
type Frame struct {
	ID           string `json:"id"`
	Seq          uint64 `json:"seq"`
	CapturedAtMs int64  `json:"captured_at_ms"`
	ContentType  string `json:"content_type"`
	Size         int    `json:"size"`
	Data         []byte `json:"-"`
}
