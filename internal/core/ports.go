package core

import (
	"context"
)

// Action is a single delivery of the file to one destination
type Action interface {
	// Kind identifies the delivery capability
	Kind() ActionKind

	// Target describes the destination (folder or address)
	Target() string

	// Deliver performs the delivery of the file at filePath
	Deliver(ctx context.Context, filePath string) error
}

// FileIngester copies files into the media library ingest folder
type FileIngester interface {
	// Ingest copies the file and returns the destination path
	Ingest(ctx context.Context, filePath string) (string, error)

	// Folder returns the ingest folder
	Folder() string
}

// DeviceMailer sends files as attachments to device email addresses
type DeviceMailer interface {
	// SendFile mails the file at filePath to address
	SendFile(ctx context.Context, filePath, address string) error
}

// DeviceDirectory resolves device identifiers to email addresses
type DeviceDirectory interface {
	// Lookup returns the address configured for a device identifier
	Lookup(device string) (string, bool)
}
