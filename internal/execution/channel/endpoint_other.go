//go:build !unix

package channel

func setNonblock(int) error {
	return nil
}
