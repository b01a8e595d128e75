package receiving

import (
	"errors"
	"time"
)

// Package is one inbound shipment accepted at the dock. Receiving a package
// opens an inventory batch whose source reference points back here.
type Package struct {
	ID             string
	Reference      string
	Carrier        string
	TrackingNumber string
	Quantity       int
	ReceivedBy     string
	CreatedAt      time.Time
}

// ErrPackageNotFound indicates an unknown package id.
var ErrPackageNotFound = errors.New("receiving: package not found")
