package roots

import "fmt"

func errorf(method, format string, a ...interface{}) error {
	return fmt.Errorf("github.com/ksyncdev/ksync/internal/roots."+method+": "+format, a...)
}
