package validate

import (
	"fmt"
	"time"
)

// ValidatePortRange accepts ports 1-65535. Port 0 is rejected because peers
// need a fixed address to dial.
func ValidatePortRange(port int) error {
	return ValidateField(port, "required,min=1,max=65535")
}

func ValidateRequiredString(value, fieldName string) error {
	if err := ValidateField(value, "required"); err != nil {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidatePositiveTimeout is used for reconnect intervals, dial timeouts and
// leadership terms.
func ValidatePositiveTimeout(timeout time.Duration, name string) error {
	if timeout <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}

// ValidateNonNegativeDuration accepts zero for settings where it means
// disabled or immediate, such as idle pruning or the first reconnect delay.
func ValidateNonNegativeDuration(d time.Duration, name string) error {
	if err := ValidateField(int64(d), "min=0"); err != nil {
		return fmt.Errorf("%s cannot be negative", name)
	}
	return nil
}

// ValidatePositiveCount validates that a pool or queue size is at least one.
func ValidatePositiveCount(n int, name string) error {
	if err := ValidateField(n, "min=1"); err != nil {
		return fmt.Errorf("%s must be at least 1, got: %d", name, n)
	}
	return nil
}
