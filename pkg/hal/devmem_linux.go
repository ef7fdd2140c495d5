//go:build linux && !tinygo

package hal

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// DevMem maps physical register blocks through /dev/mem. Close unmaps every block it handed out.
type DevMem struct {
	f    *os.File
	maps [][]byte
}

func OpenDevMem() (*DevMem, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open /dev/mem: %w", err)
	}
	return &DevMem{f: f}, nil
}

// Map maps size bytes at the page aligned physical address base as 32 bit registers.
func (m *DevMem) Map(base int64, size int) ([]uint32, error) {
	mem8, err := syscall.Mmap(int(m.f.Fd()), base, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap 0x%x: %w", base, err)
	}
	m.maps = append(m.maps, mem8)
	return unsafe.Slice((*uint32)(unsafe.Pointer(&mem8[0])), len(mem8)/4), nil
}

func (m *DevMem) Close() error {
	var errs []error
	for _, mem8 := range m.maps {
		errs = append(errs, syscall.Munmap(mem8))
	}
	m.maps = nil
	return errors.Join(append(errs, m.f.Close())...)
}
