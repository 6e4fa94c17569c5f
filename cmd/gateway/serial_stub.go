//go:build no_serial
// +build no_serial

package main

import (
	"errors"
	"io"
)

func openSerial(port string, baud int) (io.ReadCloser, error) {
	return nil, errors.New("serial support not built in (no_serial tag); use gateway.address")
}
