package utils

import "fmt"

// EnumValidator rejects values outside allowed.
func EnumValidator(allowed ...string) func(string) error {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(s string) error {
		if _, ok := set[s]; ok {
			return nil
		}
		return fmt.Errorf("value %q not in %v", s, allowed)
	}
}

// MaxRunes rejects strings longer than n characters.
func MaxRunes(n int) func(string) error {
	return func(s string) error {
		if c := len([]rune(s)); c > n {
			return fmt.Errorf("length %d exceeds %d", c, n)
		}
		return nil
	}
}
