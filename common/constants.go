package common

// USB identity the signing device announces. The bridge claims the
// first attached device matching both IDs unless its config says
// otherwise.
const (
	VID = 0x2C97
	PID = 0x0001
)

// VendorReqReady is the vendor control request the device answers on
// endpoint zero while the data endpoints may be parked on a review.
const VendorReqReady = 0x5A
