package httpapi

import "fmt"

func errMissingParam(name string) error {
	return fmt.Errorf("missing required query parameter: %s", name)
}

func errInvalidParam(name, value string) error {
	return fmt.Errorf("invalid value for %s: %q", name, value)
}
