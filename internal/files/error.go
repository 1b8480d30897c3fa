package files

import "fmt"

func errorf(method, format string, a ...interface{}) error {
	return fmt.Errorf("github.com/ksyncdev/ksync/internal/files."+method+": "+format, a...)
}
