//go:build unix

package hostbuf

import "golang.org/x/sys/unix"

func allocate(size int) ([]byte, bool, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func release(data []byte) error {
	return unix.Munmap(data)
}

func lock(data []byte) error {
	return unix.Mlock(data)
}

func unlock(data []byte) error {
	return unix.Munlock(data)
}
