package main

import (
	"sync"

	"github.com/vmkit/vmkit/pkg/types"
)

// sampleDevice is a placeholder device used to exercise registration and
// dispatch from the CLI. Reads return zeroes, writes are dropped.
type sampleDevice struct {
	mu        sync.Mutex
	name      string
	resources []types.Resource
}

func newSampleDevice(name string) *sampleDevice {
	return &sampleDevice{name: name}
}

func (d *sampleDevice) Name() string { return d.name }

func (d *sampleDevice) Read(_ types.GuestAddress, data []byte, _ types.IoKind) error {
	for i := range data {
		data[i] = 0
	}
	return nil
}

func (d *sampleDevice) Write(types.GuestAddress, []byte, types.IoKind) error {
	return nil
}

func (d *sampleDevice) AcceptResources(resources []types.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources = resources
}
