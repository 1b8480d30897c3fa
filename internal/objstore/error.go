package objstore

import "fmt"

func errorf(method, format string, a ...interface{}) error {
	return fmt.Errorf("github.com/ksyncdev/ksync/internal/objstore."+method+": "+format, a...)
}
