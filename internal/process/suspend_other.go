//go:build !unix

package process

func suspend(int) error {
	return ErrUnsupported
}

func resume(int) error {
	return ErrUnsupported
}
