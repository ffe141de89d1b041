package core

import (
	"context"
	"path/filepath"
	"strings"
)

type fakeIngester struct {
	folder string
	err    error
	panic  bool
	calls  []string
}

func (f *fakeIngester) Ingest(_ context.Context, filePath string) (string, error) {
	f.calls = append(f.calls, filePath)
	if f.panic {
		panic("disk on fire")
	}
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(f.folder, filepath.Base(filePath)), nil
}

func (f *fakeIngester) Folder() string { return f.folder }

type fakeMailer struct {
	fail  map[string]error
	calls []string
}

func (f *fakeMailer) SendFile(_ context.Context, _ string, address string) error {
	f.calls = append(f.calls, address)
	return f.fail[address]
}

type fakeDirectory map[string]string

func (d fakeDirectory) Lookup(device string) (string, bool) {
	address, ok := d[strings.ToLower(device)]
	return address, ok
}
