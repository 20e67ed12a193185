package main

import (
	"fmt"
	"io"
	"os"

	"github.com/intake-gateway/intake-gateway/internal/auth"
)

// hashKey prints the bcrypt hash of a shared key for auth.api_key_hash. The key is
// taken from args, or read from in when no argument is given.
func hashKey(args []string, in *os.File, out io.Writer) error {
	var key string
	switch len(args) {
	case 0:
		k, err := auth.ReadKey(in, os.Stderr)
		if err != nil {
			return err
		}
		key = k
	case 1:
		key = args[0]
	default:
		return fmt.Errorf("usage: %s hash-key [key]", os.Args[0])
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hash)
	return nil
}
