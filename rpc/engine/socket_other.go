//go:build !unix

package engine

func dial(string) (int, bool, error) { return -1, false, ErrUnsupportedPlatform }

func socketError(int) error { return ErrUnsupportedPlatform }

func readFD(int, []byte) (int, error) { return 0, ErrUnsupportedPlatform }

func writeFD(int, []byte) (int, error) { return 0, ErrUnsupportedPlatform }

func closeFD(int) error { return nil }

func isAgain(error) bool { return false }

func isInterrupted(error) bool { return false }
