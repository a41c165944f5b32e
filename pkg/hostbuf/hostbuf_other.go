//go:build !unix

package hostbuf

func allocate(size int) ([]byte, bool, error) {
	return make([]byte, size), false, nil
}

func release([]byte) error {
	return nil
}

func lock([]byte) error {
	return ErrLockUnsupported
}

func unlock([]byte) error {
	return nil
}
