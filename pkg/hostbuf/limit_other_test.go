//go:build !unix

package hostbuf

func isResourceLimit(error) bool { return false }
